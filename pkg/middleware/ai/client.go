// Package ai defines the completion and embedding capabilities the pipeline
// consumes, and the calque handlers that drive them.
//
// Providers live in sub-packages (openai, ollama, gemini) and all implement
// Client. A Client reads its prompt from the request stream, either plain
// text or a JSON encoded Conversation, and streams the completion text to the
// response.
package ai

import (
	"context"

	"github.com/calque-ai/medrag/pkg/calque"
)

// Client is a chat completion backend.
type Client interface {
	Chat(r *calque.Request, w *calque.Response, opts *AgentOptions) error
}

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical input and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Role is the author of a chat message.
type Role string

// Chat roles understood by every provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the JSON payload a Client accepts for multi-turn prompts.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }
