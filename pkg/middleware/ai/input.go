package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/calque-ai/medrag/pkg/calque"
)

// ClassifyInput reads the request stream and returns the chat messages it
// carries. A JSON Conversation with at least one message is used as is; any
// other payload becomes a single user message.
func ClassifyInput(r *calque.Request) ([]Message, error) {
	raw, err := io.ReadAll(r.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var conv Conversation
		if json.Unmarshal(trimmed, &conv) == nil && len(conv.Messages) > 0 {
			return conv.Messages, nil
		}
	}

	return []Message{User(string(raw))}, nil
}

// SplitSystem separates leading system messages from the rest. Providers
// without a system role in their message list use it.
func SplitSystem(msgs []Message) (system string, rest []Message) {
	var sys bytes.Buffer
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if sys.Len() > 0 {
				sys.WriteString("\n\n")
			}
			sys.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return sys.String(), rest
}
