// Package rewrite turns a follow-up question into a self-contained one using
// the preceding conversation turns.
package rewrite

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
)

// Roles accepted in Turn.Role. Anything else is sent as a user turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message in a conversation, oldest first.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time,omitempty"`
}

// Policy decides when a model output is an answer rather than a rewrite.
// Matching is case-insensitive.
type Policy struct {
	MinLength      int      `yaml:"min_length"`
	RejectPrefixes []string `yaml:"reject_prefixes"`
	RejectPhrases  []string `yaml:"reject_phrases"`
}

// DefaultPolicy rejects outputs that greet, speak in first or second person,
// apologize or describe the assistant.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      5,
		RejectPrefixes: []string{"tôi", "bạn", "chào"},
		RejectPhrases:  []string{"là trợ lý", "xin lỗi"},
	}
}

// Accepts reports whether out is usable as a rewritten question.
func (p Policy) Accepts(out string) bool {
	if out == "" || utf8.RuneCountInString(out) < p.MinLength {
		return false
	}
	lower := cases.Lower(language.Vietnamese).String(out)
	for _, prefix := range p.RejectPrefixes {
		if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return false
		}
	}
	for _, phrase := range p.RejectPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return false
		}
	}
	return true
}

// Config tunes the rewrite completion.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	TopP         float64
	MaxTurnChars int
	Policy       Policy
}

// DefaultConfig uses a low temperature and caps each history turn at 800 runes.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.1,
		MaxTokens:    400,
		TopP:         0.95,
		MaxTurnChars: 800,
		Policy:       DefaultPolicy(),
	}
}

// Rewriter rewrites questions through a completion client. It is safe for
// concurrent use.
type Rewriter struct {
	client ai.Client
	cfg    Config
}

// New creates a Rewriter.
func New(client ai.Client, cfg Config) *Rewriter {
	return &Rewriter{client: client, cfg: cfg}
}

// Rewrite returns a self-contained form of query. With no history it returns
// query without calling the model. Any failure falls back to query.
func (rw *Rewriter) Rewrite(ctx context.Context, query string, history []Turn) string {
	if len(history) == 0 || rw.client == nil {
		return query
	}

	calque.LogDebug(ctx, "rewriting query", "turns", len(history))

	out, err := ai.Complete(ctx, rw.client, rw.messages(query, history), rw.options()...)
	if err != nil {
		calque.LogWarn(ctx, "query rewrite failed, using original", "error", err)
		return query
	}

	out = clean(out)
	if !rw.cfg.Policy.Accepts(out) {
		calque.LogWarn(ctx, "query rewrite rejected, using original", "output", helpers.Truncate(out, 120))
		return query
	}

	calque.LogDebug(ctx, "query rewritten", "rewritten", out)
	return out
}

func (rw *Rewriter) messages(query string, history []Turn) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.System(systemPrompt))
	for _, turn := range history {
		content := turn.Content
		if rw.cfg.MaxTurnChars > 0 {
			content = helpers.Truncate(content, rw.cfg.MaxTurnChars)
		}
		if turn.Role == RoleAssistant {
			msgs = append(msgs, ai.Assistant(content))
		} else {
			msgs = append(msgs, ai.User(content))
		}
	}
	return append(msgs, ai.User(query))
}

func (rw *Rewriter) options() []ai.AgentOption {
	opts := []ai.AgentOption{
		ai.WithTemperature(rw.cfg.Temperature),
		ai.WithTopP(rw.cfg.TopP),
	}
	if rw.cfg.Model != "" {
		opts = append(opts, ai.WithModel(rw.cfg.Model))
	}
	if rw.cfg.MaxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(rw.cfg.MaxTokens))
	}
	return opts
}

// clean strips decoration models add around a single-line answer.
func clean(out string) string {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "→")
	out = strings.TrimSpace(out)
	for _, label := range []string{"Câu hỏi viết lại:", "Câu hỏi:"} {
		if strings.HasPrefix(out, label) {
			out = strings.TrimSpace(strings.TrimPrefix(out, label))
		}
	}
	return strings.TrimSpace(strings.Trim(out, `"“”'`))
}
