// Package answer writes the final reply from a question and its rendered
// reference context through a completion model.
package answer

import (
	"context"
	"errors"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/ctrl"
	"github.com/calque-ai/medrag/pkg/middleware/prompt"
	"github.com/calque-ai/medrag/pkg/middleware/text"
)

// ErrSynthesis marks a failed or empty completion.
var ErrSynthesis = errors.New("answer: synthesis failed")

// Config tunes the completion.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64

	// Timeout bounds one completion attempt. 0 means no limit.
	Timeout time.Duration
	// Attempts is how many times a failed completion is tried. 0 or 1 means once.
	Attempts int
}

// DefaultConfig returns temperature 0.4, 4000 tokens and top_p 0.9, one
// attempt of at most two minutes.
func DefaultConfig() Config {
	return Config{Temperature: 0.4, MaxTokens: 4000, TopP: 0.9, Timeout: 2 * time.Minute, Attempts: 1}
}

// Synthesizer is safe for concurrent use.
type Synthesizer struct {
	client ai.Client
	cfg    Config
}

// New creates a Synthesizer.
func New(client ai.Client, cfg Config) *Synthesizer {
	return &Synthesizer{client: client, cfg: cfg}
}

// Synthesize answers question from renderedContext. Errors wrap ErrSynthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, question, renderedContext string) (string, error) {
	flow := calque.NewFlow().
		Use(prompt.Conversation(systemPrompt, userPrompt, map[string]any{"Context": renderedContext})).
		Use(ctrl.Retry(ctrl.Timeout(ai.Agent(s.client, s.options()...), s.cfg.Timeout), s.cfg.Attempts)).
		Use(text.Transform(text.StripTagged("think")))

	var out string
	if err := flow.Run(ctx, question, &out); err != nil {
		return "", calque.WrapErr(ctx, errors.Join(ErrSynthesis, err), "answer completion failed")
	}
	if out == "" {
		return "", calque.WrapErr(ctx, ErrSynthesis, "answer completion was empty")
	}

	calque.LogDebug(ctx, "answer synthesized", "chars", len([]rune(out)))
	return out, nil
}

func (s *Synthesizer) options() []ai.AgentOption {
	opts := []ai.AgentOption{
		ai.WithTemperature(s.cfg.Temperature),
		ai.WithTopP(s.cfg.TopP),
	}
	if s.cfg.Model != "" {
		opts = append(opts, ai.WithModel(s.cfg.Model))
	}
	if s.cfg.MaxTokens > 0 {
		opts = append(opts, ai.WithMaxTokens(s.cfg.MaxTokens))
	}
	return opts
}
