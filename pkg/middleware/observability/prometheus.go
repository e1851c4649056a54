package observability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultDurationBuckets suits a pipeline whose stages range from a cache
// lookup to a multi-second generation.
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PrometheusProvider implements MetricsProvider with a Prometheus registry.
// Metric vectors are created on first use; the label names of the first call
// fix the vector's label set.
type PrometheusProvider struct {
	mu         sync.RWMutex
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	buckets    []float64
}

// PrometheusOption configures the provider.
type PrometheusOption func(*PrometheusProvider)

// WithDurationBuckets sets histogram buckets.
func WithDurationBuckets(buckets []float64) PrometheusOption {
	return func(p *PrometheusProvider) { p.buckets = buckets }
}

// WithPrometheusRegistry uses registry instead of a fresh one.
func WithPrometheusRegistry(registry *prometheus.Registry) PrometheusOption {
	return func(p *PrometheusProvider) { p.registry = registry }
}

// NewPrometheusProvider creates a provider with Go runtime and process
// collectors registered.
func NewPrometheusProvider(opts ...PrometheusOption) *PrometheusProvider {
	p := &PrometheusProvider{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		buckets:    DefaultDurationBuckets,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.registry.MustRegister(collectors.NewGoCollector())
	p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return p
}

// Counter implements MetricsProvider.
func (p *PrometheusProvider) Counter(_ context.Context, name string, value int64, labels map[string]string) {
	vec := getOrCreate(p, p.counters, name, labels, func(names []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: "Counter for " + name}, names)
	})
	vec.With(labels).Add(float64(value))
}

// Gauge implements MetricsProvider.
func (p *PrometheusProvider) Gauge(_ context.Context, name string, value float64, labels map[string]string) {
	vec := getOrCreate(p, p.gauges, name, labels, func(names []string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: "Gauge for " + name}, names)
	})
	vec.With(labels).Add(value)
}

// Histogram implements MetricsProvider.
func (p *PrometheusProvider) Histogram(_ context.Context, name string, value float64, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(value)
}

// RecordDuration implements MetricsProvider.
func (p *PrometheusProvider) RecordDuration(_ context.Context, name string, duration time.Duration, labels map[string]string) {
	p.histogram(name, labels).With(labels).Observe(duration.Seconds())
}

func (p *PrometheusProvider) histogram(name string, labels map[string]string) *prometheus.HistogramVec {
	return getOrCreate(p, p.histograms, name, labels, func(names []string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "Histogram for " + name,
			Buckets: p.buckets,
		}, names)
	})
}

// Handler serves the registry for scraping.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (p *PrometheusProvider) Registry() *prometheus.Registry {
	return p.registry
}

func getOrCreate[V prometheus.Collector](p *PrometheusProvider, vecs map[string]V, name string, labels map[string]string, build func([]string) V) V {
	p.mu.RLock()
	vec, ok := vecs[name]
	p.mu.RUnlock()
	if ok {
		return vec
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok = vecs[name]; ok {
		return vec
	}

	vec = build(labelNames(labels))
	p.registry.MustRegister(vec)
	vecs[name] = vec
	return vec
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
