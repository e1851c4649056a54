package ai

// AgentOptions are per-call overrides. Nil fields fall back to the provider
// configuration.
type AgentOptions struct {
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// AgentOption configures a single call.
type AgentOption interface {
	Apply(*AgentOptions)
}

type optionFunc func(*AgentOptions)

func (f optionFunc) Apply(o *AgentOptions) { f(o) }

// WithModel overrides the provider model for one call.
func WithModel(model string) AgentOption {
	return optionFunc(func(o *AgentOptions) { o.Model = model })
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) AgentOption {
	return optionFunc(func(o *AgentOptions) { o.Temperature = &t })
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) AgentOption {
	return optionFunc(func(o *AgentOptions) { o.TopP = &p })
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) AgentOption {
	return optionFunc(func(o *AgentOptions) { o.MaxTokens = &n })
}

// NewAgentOptions applies opts in order.
func NewAgentOptions(opts ...AgentOption) *AgentOptions {
	o := &AgentOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	return o
}

// ModelOr returns the per-call model or fallback.
func (o *AgentOptions) ModelOr(fallback string) string {
	if o == nil || o.Model == "" {
		return fallback
	}
	return o.Model
}
