// Package openai implements ai.Client and ai.Embedder on top of the OpenAI
// chat completions and embeddings APIs.
//
// Any OpenAI compatible host works through BaseURL; NewGroq preconfigures
// Groq, which serves the default medrag models.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/ai/config"
)

// GroqBaseURL is the OpenAI compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("openai: API key not set")

// Client talks to an OpenAI compatible API.
type Client struct {
	client *openai.Client
	model  string
	config *Config
}

// Config holds provider settings. Pointer fields left nil are not sent.
type Config struct {
	APIKey  string
	BaseURL string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      *bool
	MaxRetries  *int

	// EmbeddingModel enables Embed.
	EmbeddingModel      string
	EmbeddingDimensions *int
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

// DefaultConfig reads OPENAI_API_KEY and OPENAI_BASE_URL.
func DefaultConfig() *Config {
	return &Config{
		APIKey:  helpers.GetStringFromEnv("OPENAI_API_KEY", ""),
		BaseURL: helpers.GetStringFromEnv("OPENAI_BASE_URL", ""),
		Stream:  helpers.PtrOf(false),
	}
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
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		reqOpts = append(reqOpts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	c := openai.NewClient(reqOpts...)
	return &Client{client: &c, model: model, config: cfg}, nil
}

// NewGroq creates a client against Groq, reading GROQ_API_KEY.
func NewGroq(model string, opts ...Option) (*Client, error) {
	base := &Config{
		APIKey:  helpers.GetStringFromEnv("GROQ_API_KEY", ""),
		BaseURL: GroqBaseURL,
	}
	return New(model, append([]Option{WithConfig(base)}, opts...)...)
}

// Chat implements ai.Client.
func (c *Client) Chat(r *calque.Request, w *calque.Response, opts *ai.AgentOptions) error {
	msgs, err := ai.ClassifyInput(r)
	if err != nil {
		return err
	}

	params := c.buildParams(msgs, opts)
	if helpers.ValueOr(c.config.Stream, false) {
		return c.stream(r.Context, params, w)
	}

	resp, err := c.client.Chat.Completions.New(r.Context, params)
	if err != nil {
		return calque.WrapErr(r.Context, err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return calque.NewErr(r.Context, "openai returned no choices")
	}
	_, err = io.WriteString(w.Data, resp.Choices[0].Message.Content)
	return err
}

func (c *Client) stream(ctx context.Context, params openai.ChatCompletionNewParams, w *calque.Response) (err error) {
	s := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for s.Next() {
		chunk := s.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if _, err = io.WriteString(w.Data, chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err = s.Err(); err != nil {
		return calque.WrapErr(ctx, err, "openai stream failed")
	}
	return nil
}

func (c *Client) buildParams(msgs []ai.Message, opts *ai.AgentOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(opts.ModelOr(c.model)),
		Messages: toMessages(msgs),
	}

	temp, topP, maxTokens := c.config.Temperature, c.config.TopP, c.config.MaxTokens
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
		params.Temperature = openai.Float(*temp)
	}
	if topP != nil {
		params.TopP = openai.Float(*topP)
	}
	if maxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*maxTokens))
	}
	return params
}

func toMessages(msgs []ai.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case ai.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case ai.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Embed implements ai.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.EmbeddingModel == "" {
		return nil, calque.NewErr(ctx, "openai: no embedding model configured")
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.config.EmbeddingModel),
	}
	if c.config.EmbeddingDimensions != nil {
		params.Dimensions = openai.Int(int64(*c.config.EmbeddingDimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, calque.WrapErr(ctx, err, "openai embedding failed")
	}
	if len(resp.Data) == 0 {
		return nil, calque.NewErr(ctx, "openai returned no embeddings")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}
