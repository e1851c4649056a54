// Package gemini implements ai.Client and ai.Embedder with Google's genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/genai"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/ai/config"
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("gemini: GOOGLE_API_KEY not set")

// Client talks to the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	config *Config
}

// Config holds provider settings.
type Config struct {
	APIKey string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// EmbeddingModel enables Embed, e.g. "text-embedding-004".
	EmbeddingModel string
}

// Option configures a Client.
type Option interface {
	Apply(*Config)
}

type configOption struct{ cfg *Config }

func (o configOption) Apply(c *Config) { config.Merge(c, o.cfg) }

// WithConfig merges cfg over the defaults.
func WithConfig(cfg *Config) Option {
	return configOption{cfg: cfg}
}

// DefaultConfig reads GOOGLE_API_KEY.
func DefaultConfig() *Config {
	return &Config{APIKey: helpers.GetStringFromEnv("GOOGLE_API_KEY", "")}
}

// New creates a client for model.
func New(ctx context.Context, model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{client: client, model: model, config: cfg}, nil
}

// Chat implements ai.Client, streaming text parts as they arrive.
func (g *Client) Chat(r *calque.Request, w *calque.Response, opts *ai.AgentOptions) error {
	msgs, err := ai.ClassifyInput(r)
	if err != nil {
		return err
	}

	contents, genCfg := g.buildRequest(msgs, opts)
	for result, err := range g.client.Models.GenerateContentStream(r.Context, opts.ModelOr(g.model), contents, genCfg) {
		if err != nil {
			return calque.WrapErr(r.Context, err, "gemini generation failed")
		}
		if text := result.Text(); text != "" {
			if _, err := io.WriteString(w.Data, text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Client) buildRequest(msgs []ai.Message, opts *ai.AgentOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := ai.SplitSystem(msgs)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == ai.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	temp, topP, maxTokens := g.config.Temperature, g.config.TopP, g.config.MaxTokens
	if opts != nil {
		if opts.Temperature != nil {
			temp = opts.Temperature
		}
		if opts.TopP != nil {
			topP = opts.TopP
		}
		if opts.MaxTokens != nil {
			maxTokens = opts.MaxTokens
		}
	}
	if temp != nil {
		cfg.Temperature = genai.Ptr(float32(*temp))
	}
	if topP != nil {
		cfg.TopP = genai.Ptr(float32(*topP))
	}
	if maxTokens != nil {
		cfg.MaxOutputTokens = int32(*maxTokens)
	}
	return contents, cfg
}

// Embed implements ai.Embedder.
func (g *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.config.EmbeddingModel == "" {
		return nil, calque.NewErr(ctx, "gemini: no embedding model configured")
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.config.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "gemini embedding failed")
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, calque.NewErr(ctx, "gemini returned no embeddings")
	}
	return resp.Embeddings[0].Values, nil
}
