package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calque-ai/medrag/pkg/calque"
)

// Agent wraps a Client as a flow handler.
//
//	flow := calque.NewFlow().Use(ai.Agent(client, ai.WithTemperature(0)))
func Agent(client Client, opts ...AgentOption) calque.Handler {
	return calque.HandlerFunc(func(r *calque.Request, w *calque.Response) error {
		return client.Chat(r, w, NewAgentOptions(opts...))
	})
}

// Complete sends msgs through client and returns the trimmed completion.
func Complete(ctx context.Context, client Client, msgs []Message, opts ...AgentOption) (string, error) {
	if client == nil {
		return "", fmt.Errorf("completion client is nil")
	}
	payload, err := json.Marshal(Conversation{Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation: %w", err)
	}

	var out string
	if err := calque.NewFlow().Use(Agent(client, opts...)).Run(ctx, payload, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
