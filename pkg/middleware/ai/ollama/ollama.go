// Package ollama implements ai.Client and ai.Embedder against a local Ollama
// server.
package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/ai/config"
)

// Client talks to an Ollama server.
type Client struct {
	client *api.Client
	model  string
	config *Config
}

// Config holds provider settings.
type Config struct {
	// Host overrides OLLAMA_HOST, e.g. "http://localhost:11434".
	Host string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	KeepAlive   string

	// EmbeddingModel enables Embed, e.g. "bge-m3".
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

// DefaultConfig returns an empty config; the host comes from OLLAMA_HOST.
func DefaultConfig() *Config {
	return &Config{EmbeddingModel: helpers.GetStringFromEnv("OLLAMA_EMBED_MODEL", "")}
}

// New creates a client for model.
func New(model string, opts ...Option) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	var client *api.Client
	if cfg.Host == "" {
		var err error
		if client, err = api.ClientFromEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to create client from environment: %w", err)
		}
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid host URL: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &Client{client: client, model: model, config: cfg}, nil
}

// Chat implements ai.Client. Tokens are streamed as they arrive.
func (o *Client) Chat(r *calque.Request, w *calque.Response, opts *ai.AgentOptions) error {
	msgs, err := ai.ClassifyInput(r)
	if err != nil {
		return err
	}

	req := o.buildRequest(msgs, opts)
	err = o.client.Chat(r.Context, req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		_, werr := io.WriteString(w.Data, resp.Message.Content)
		return werr
	})
	if err != nil {
		return calque.WrapErr(r.Context, err, "ollama chat failed")
	}
	return nil
}

func (o *Client) buildRequest(msgs []ai.Message, opts *ai.AgentOptions) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    opts.ModelOr(o.model),
		Messages: make([]api.Message, 0, len(msgs)),
		Options:  make(map[string]any),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	temp, topP, maxTokens := o.config.Temperature, o.config.TopP, o.config.MaxTokens
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
		req.Options["temperature"] = *temp
	}
	if topP != nil {
		req.Options["top_p"] = *topP
	}
	if maxTokens != nil {
		req.Options["num_predict"] = *maxTokens
	}
	if o.config.KeepAlive != "" {
		req.Options["keep_alive"] = o.config.KeepAlive
	}
	return req
}

// Embed implements ai.Embedder.
func (o *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	model := helpers.FirstNonEmpty(o.config.EmbeddingModel, o.model)
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: text})
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "ollama embedding failed")
	}
	if len(resp.Embeddings) == 0 {
		return nil, calque.NewErr(ctx, "ollama returned no embeddings")
	}
	return resp.Embeddings[0], nil
}
