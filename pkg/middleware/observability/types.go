// Package observability provides metrics, tracing and health checks behind
// small interfaces so the pipeline can run with Prometheus and OTLP in
// production and with in-memory recorders in tests.
package observability

import (
	"context"
	"time"
)

// MetricsProvider records metrics.
type MetricsProvider interface {
	// Counter adds value to a monotonically increasing counter.
	Counter(ctx context.Context, name string, value int64, labels map[string]string)

	// Gauge adds value to a gauge. Pass a negative value to decrease it.
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)

	// Histogram observes value.
	Histogram(ctx context.Context, name string, value float64, labels map[string]string)

	// RecordDuration observes duration in seconds.
	RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string)
}

// TracerProvider creates spans.
type TracerProvider interface {
	// StartSpan starts a span and returns a context carrying it.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes pending spans.
	Shutdown(ctx context.Context) error
}

// Span is one traced operation. End must be called exactly once.
type Span interface {
	// End finishes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttribute(key string, value any)
	AddEvent(name string, attrs map[string]any)
	SetStatus(code SpanStatus, description string)
	SpanContext() SpanContext
}

// SpanContext identifies a span for log correlation.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// SpanStatus is a span's final status.
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// SpanKind describes the span's role.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// SpanOption configures span creation.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{kind: SpanKindInternal, attributes: map[string]any{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSpanKind sets the kind of span.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) { cfg.kind = kind }
}

// WithAttributes sets initial span attributes.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		for k, v := range attrs {
			cfg.attributes[k] = v
		}
	}
}

// Labels is a set of metric labels.
type Labels map[string]string

// Merge returns a new map holding l overlaid with other.
func (l Labels) Merge(other Labels) Labels {
	result := make(Labels, len(l)+len(other))
	for k, v := range l {
		result[k] = v
	}
	for k, v := range other {
		result[k] = v
	}
	return result
}
