package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// NoopMetricsProvider discards metrics.
type NoopMetricsProvider struct{}

func (NoopMetricsProvider) Counter(context.Context, string, int64, map[string]string)                {}
func (NoopMetricsProvider) Gauge(context.Context, string, float64, map[string]string)                {}
func (NoopMetricsProvider) Histogram(context.Context, string, float64, map[string]string)            {}
func (NoopMetricsProvider) RecordDuration(context.Context, string, time.Duration, map[string]string) {}

// NoopTracerProvider creates spans that record nothing.
type NoopTracerProvider struct{}

// StartSpan implements TracerProvider.
func (NoopTracerProvider) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

// Shutdown implements TracerProvider.
func (NoopTracerProvider) Shutdown(context.Context) error { return nil }

type noopSpan struct{}

func (noopSpan) End(error)                       {}
func (noopSpan) SetAttribute(string, any)        {}
func (noopSpan) AddEvent(string, map[string]any) {}
func (noopSpan) SetStatus(SpanStatus, string)    {}
func (noopSpan) SpanContext() SpanContext        { return SpanContext{} }

// InMemoryMetricsProvider records metrics for assertions in tests.
type InMemoryMetricsProvider struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryMetricsProvider creates an empty recorder.
func NewInMemoryMetricsProvider() *InMemoryMetricsProvider {
	return &InMemoryMetricsProvider{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (p *InMemoryMetricsProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[metricsKey(name, labels)] += value
}

func (p *InMemoryMetricsProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := metricsKey(name, labels)
	p.histograms[key] = append(p.histograms[key], value)
}

func (p *InMemoryMetricsProvider) RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	p.Histogram(ctx, name, duration.Seconds(), labels)
}

// GetCounter returns a counter's value.
func (p *InMemoryMetricsProvider) GetCounter(name string, labels map[string]string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[metricsKey(name, labels)]
}

// GetGauge returns a gauge's value.
func (p *InMemoryMetricsProvider) GetGauge(name string, labels map[string]string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[metricsKey(name, labels)]
}

// GetHistogram returns a copy of the observed values.
func (p *InMemoryMetricsProvider) GetHistogram(name string, labels map[string]string) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float64(nil), p.histograms[metricsKey(name, labels)]...)
}

// metricsKey is order independent so label maps compare by content.
func metricsKey(name string, labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

// InMemoryTracerProvider records finished spans for assertions in tests.
type InMemoryTracerProvider struct {
	mu    sync.RWMutex
	spans []*RecordedSpan
}

// RecordedSpan is a finished span.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	Events     []string
	Status     SpanStatus
	Error      error
	TraceID    string
	SpanID     string
}

// NewInMemoryTracerProvider creates an empty recorder.
func NewInMemoryTracerProvider() *InMemoryTracerProvider {
	return &InMemoryTracerProvider{}
}

// StartSpan implements TracerProvider.
func (p *InMemoryTracerProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := newSpanConfig(opts)
	span := &RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: cfg.attributes,
		TraceID:    randomID(16),
		SpanID:     randomID(8),
	}
	return ctx, &inMemorySpan{provider: p, span: span}
}

// Shutdown implements TracerProvider.
func (p *InMemoryTracerProvider) Shutdown(context.Context) error { return nil }

// GetSpans returns finished spans in end order.
func (p *InMemoryTracerProvider) GetSpans() []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*RecordedSpan(nil), p.spans...)
}

// GetSpansByName returns finished spans called name.
func (p *InMemoryTracerProvider) GetSpansByName(name string) []*RecordedSpan {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var result []*RecordedSpan
	for _, s := range p.spans {
		if s.Name == name {
			result = append(result, s)
		}
	}
	return result
}

type inMemorySpan struct {
	provider *InMemoryTracerProvider
	mu       sync.Mutex
	span     *RecordedSpan
}

func (s *inMemorySpan) End(err error) {
	s.mu.Lock()
	s.span.EndTime = time.Now()
	s.span.Error = err
	if err != nil {
		s.span.Status = SpanStatusError
	}
	s.mu.Unlock()

	s.provider.mu.Lock()
	s.provider.spans = append(s.provider.spans, s.span)
	s.provider.mu.Unlock()
}

func (s *inMemorySpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Attributes[key] = value
}

func (s *inMemorySpan) AddEvent(name string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Events = append(s.span.Events, name)
}

func (s *inMemorySpan) SetStatus(code SpanStatus, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span.Status = code
}

func (s *inMemorySpan) SpanContext() SpanContext {
	return SpanContext{TraceID: s.span.TraceID, SpanID: s.span.SpanID}
}

func randomID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
