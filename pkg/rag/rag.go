// Package rag is the answer pipeline: safety gate, question rewriting,
// semantic cache, hybrid retrieval and answer synthesis, run in that order
// with a fallback at every stage.
//
// A Pipeline is built once at startup and shared by every request:
//
//	p, err := rag.New(rag.Deps{Gate: gate, Rewriter: rw, Cache: sc, Retriever: engine, Synthesizer: synth},
//		rag.WithMetrics(metrics), rag.WithTracer(tracer))
//	answer := p.GetResponse(ctx, question, sessionID, history)
package rag

import (
	"context"
	"errors"
	"time"

	"github.com/calque-ai/medrag/pkg/middleware/observability"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
	"github.com/calque-ai/medrag/pkg/rag/guard"
	"github.com/calque-ai/medrag/pkg/rag/hybrid"
	"github.com/calque-ai/medrag/pkg/rag/rewrite"
	"github.com/calque-ai/medrag/pkg/rag/semcache"
)

// ErrMissingDependency is returned by New when a required stage is nil.
var ErrMissingDependency = errors.New("rag: missing pipeline dependency")

// Gate decides whether a question may be answered.
type Gate interface {
	Check(ctx context.Context, text string) (guard.Verdict, error)
}

// Rewriter makes a follow-up question self-contained. It never fails; on
// any problem it returns the question unchanged.
type Rewriter interface {
	Rewrite(ctx context.Context, query string, history []rewrite.Turn) string
}

// ResponseCache stores answers by question similarity.
type ResponseCache interface {
	Get(ctx context.Context, question string) (semcache.Hit, bool, error)
	Set(ctx context.Context, question, response string) error
}

// Synthesizer writes the answer from the question and rendered sources.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, renderedContext string) (string, error)
}

// Deps are the pipeline stages. Rewriter and Cache are optional.
type Deps struct {
	Gate        Gate
	Rewriter    Rewriter
	Cache       ResponseCache
	Retriever   retrieval.Retriever
	Synthesizer Synthesizer
}

// Pipeline answers questions. It is safe for concurrent use and holds no
// per-request state.
type Pipeline struct {
	deps            Deps
	metrics         observability.MetricsProvider
	tracer          observability.TracerProvider
	maxContextChars int
	topK            int
	now             func() time.Time
	newID           func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records pipeline metrics.
func WithMetrics(m observability.MetricsProvider) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer records a span per request and per stage.
func WithTracer(t observability.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMaxContextChars sets the rendered context budget.
func WithMaxContextChars(n int) Option {
	return func(p *Pipeline) { p.maxContextChars = n }
}

// WithTopK sets how many fused passages each request retrieves. 0 uses the
// retriever's own default.
func WithTopK(k int) Option {
	return func(p *Pipeline) { p.topK = k }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New creates a Pipeline. Gate, Retriever and Synthesizer are required.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("safety gate"))
	case deps.Retriever == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("retriever"))
	case deps.Synthesizer == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("synthesizer"))
	}

	p := &Pipeline{
		deps:            deps,
		metrics:         observability.NoopMetricsProvider{},
		tracer:          observability.NoopTracerProvider{},
		maxContextChars: hybrid.DefaultMaxContextChars,
		now:             time.Now,
		newID:           newRequestID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}
