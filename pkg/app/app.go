// Package app builds a running medrag service from a config.Config: the
// logger, telemetry, model clients, stores, retrieval backends and the
// answer pipeline. Transports and the CLI share one App per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/config"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/cache"
	"github.com/calque-ai/medrag/pkg/middleware/logger"
	"github.com/calque-ai/medrag/pkg/middleware/memory"
	"github.com/calque-ai/medrag/pkg/middleware/observability"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
	"github.com/calque-ai/medrag/pkg/rag"
	"github.com/calque-ai/medrag/pkg/rag/answer"
	"github.com/calque-ai/medrag/pkg/rag/guard"
	"github.com/calque-ai/medrag/pkg/rag/hybrid"
	"github.com/calque-ai/medrag/pkg/rag/rewrite"
	"github.com/calque-ai/medrag/pkg/rag/semcache"
)

// Version is set at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// ErrConfiguration marks a collaborator that could not be built from the
// configuration.
var ErrConfiguration = errors.New("app: configuration failure")

const healthTimeout = 3 * time.Second

// App is the assembled service.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *rag.Pipeline
	History  *memory.ConversationMemory
	Health   *observability.HealthCheckRegistry
	Metrics  observability.MetricsProvider
	Tracer   observability.TracerProvider

	// MetricsHandler serves the Prometheus registry. Nil when metrics are off.
	MetricsHandler http.Handler

	closers []func(context.Context) error
}

// Option replaces a collaborator App would otherwise build from config.
type Option func(*overrides)

type overrides struct {
	logOutput io.Writer
	llm       ai.Client
	embedder  ai.Embedder
	dense     retrieval.Retriever
	lexical   retrieval.Retriever
	detector  guard.LanguageDetector
}

// WithLogOutput writes logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *overrides) { o.logOutput = w }
}

// WithLLM uses client for every completion.
func WithLLM(client ai.Client) Option {
	return func(o *overrides) { o.llm = client }
}

// WithEmbedder uses e for queries and the semantic cache.
func WithEmbedder(e ai.Embedder) Option {
	return func(o *overrides) { o.embedder = e }
}

// WithRetrievers uses dense and lexical instead of the configured backends.
func WithRetrievers(dense, lexical retrieval.Retriever) Option {
	return func(o *overrides) { o.dense, o.lexical = dense, lexical }
}

// WithLanguageDetector replaces the guard's language detector.
func WithLanguageDetector(d guard.LanguageDetector) Option {
	return func(o *overrides) { o.detector = d }
}

// Build assembles an App. On error every collaborator opened so far is
// closed again.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfiguration)
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: o.logOutput})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	a := &App{
		Config: cfg,
		Logger: log,
		Health: observability.NewHealthCheckRegistry(healthTimeout),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()
	ctx = calque.WithLogger(ctx, log)

	if err := a.buildTelemetry(ctx); err != nil {
		return nil, err
	}

	llm := o.llm
	if llm == nil {
		if llm, err = newLLM(ctx, cfg.LLM); err != nil {
			return nil, fmt.Errorf("%w: llm: %w", ErrConfiguration, err)
		}
	}
	embedder := o.embedder
	if embedder == nil {
		if embedder, err = newEmbedder(ctx, cfg.Embedding); err != nil {
			return nil, fmt.Errorf("%w: embedding: %w", ErrConfiguration, err)
		}
	}

	stores := newStorePool(a)
	historyStore, err := stores.get(cfg.History.Store)
	if err != nil {
		return nil, fmt.Errorf("%w: history store: %w", ErrConfiguration, err)
	}
	a.History = memory.NewConversationWithStore(historyStore,
		memory.WithTTL(cfg.History.TTL),
		memory.WithMaxTurns(cfg.History.MaxTurns),
	)

	gate, err := a.buildGate(ctx, llm, o.detector)
	if err != nil {
		return nil, err
	}

	dense, lexical := o.dense, o.lexical
	if dense == nil || lexical == nil {
		b := newBackends(a, embedder)
		if dense == nil {
			if dense, err = b.dense(ctx); err != nil {
				return nil, fmt.Errorf("%w: dense retrieval: %w", ErrConfiguration, err)
			}
		}
		if lexical == nil {
			if lexical, err = b.lexical(ctx); err != nil {
				return nil, fmt.Errorf("%w: lexical retrieval: %w", ErrConfiguration, err)
			}
		}
	}

	r := cfg.Retrieval
	engine, err := hybrid.New(dense, lexical, hybrid.Config{
		TopKDense:        r.TopKDense,
		TopKLexical:      r.TopKBM25,
		TopKFinal:        r.TopKFinal,
		UseRRF:           r.UseRRF,
		RRFK:             r.RRFK,
		DedupeSimilarity: r.DedupeSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	deps := rag.Deps{
		Gate:      gate,
		Rewriter:  rewrite.New(llm, rewriteConfig(cfg)),
		Retriever: engine,
		Synthesizer: answer.New(llm, answer.Config{
			Model:       cfg.LLM.Model,
			Temperature: cfg.Answer.Temperature,
			MaxTokens:   cfg.Answer.MaxTokens,
			TopP:        cfg.Answer.TopP,
			Timeout:     cfg.Answer.Timeout,
			Attempts:    cfg.Answer.Attempts,
		}),
	}
	if cfg.Cache.Enabled {
		store, err := stores.get(cfg.Cache.Store)
		if err != nil {
			return nil, fmt.Errorf("%w: cache store: %w", ErrConfiguration, err)
		}
		deps.Cache = semcache.New(store, embedder, semcache.Config{
			KeyPrefix: cfg.Cache.KeyPrefix,
			Threshold: helpers.PtrOf(cfg.Cache.Threshold),
			TTL:       cfg.Cache.TTL,
		})
	}

	a.Pipeline, err = rag.New(deps,
		rag.WithMetrics(a.Metrics),
		rag.WithTracer(a.Tracer),
		rag.WithMaxContextChars(r.MaxContextChars),
		rag.WithTopK(r.TopKFinal),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	calque.LogInfo(ctx, "medrag ready",
		"version", Version,
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"embedding_provider", cfg.Embedding.Provider,
		"dense_backend", backendName(o.dense, r.DenseBackend),
		"lexical_backend", backendName(o.lexical, r.LexicalBackend),
		"cache", cfg.Cache.Enabled,
		"health_checks", a.Health.Names(),
	)
	return a, nil
}

// Context returns ctx carrying the App logger.
func (a *App) Context(ctx context.Context) context.Context {
	return calque.WithLogger(ctx, a.Logger)
}

// Close releases collaborators in reverse order of creation and flushes
// pending spans. It returns every close error joined.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildTelemetry(ctx context.Context) error {
	t := a.Config.Telemetry

	a.Metrics = observability.NoopMetricsProvider{}
	if t.Metrics {
		prom := observability.NewPrometheusProvider()
		a.Metrics = prom
		a.MetricsHandler = prom.Handler()
	}

	a.Tracer = observability.NoopTracerProvider{}
	if !t.Tracing.Enabled {
		return nil
	}
	otlpCfg := observability.DefaultOTLPConfig(t.Tracing.ServiceName, t.Tracing.Endpoint)
	otlpCfg.ServiceVersion = Version
	otlpCfg.Protocol = t.Tracing.Protocol
	otlpCfg.Insecure = t.Tracing.Insecure
	otlpCfg.SampleRate = t.Tracing.SampleRate

	tracer, err := observability.NewOTLPTracerProvider(ctx, otlpCfg)
	if err != nil {
		return fmt.Errorf("%w: tracing: %w", ErrConfiguration, err)
	}
	a.Tracer = tracer
	a.onClose(tracer.Shutdown)
	return nil
}

func (a *App) buildGate(ctx context.Context, llm ai.Client, detector guard.LanguageDetector) (*guard.Gate, error) {
	g := a.Config.Guard

	blocklist := guard.NewBlocklist(nil)
	if g.BlocklistFile != "" {
		loaded, err := guard.LoadBlocklistFile(g.BlocklistFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			calque.LogWarn(ctx, "blocklist file not found, keyword check disabled", "path", g.BlocklistFile)
		case err != nil:
			return nil, fmt.Errorf("%w: blocklist: %w", ErrConfiguration, err)
		default:
			blocklist = loaded
			calque.LogDebug(ctx, "blocklist loaded", "path", g.BlocklistFile, "keywords", loaded.Len())
		}
	}

	classifierOpts := []ai.AgentOption{
		ai.WithModel(guardModel(a.Config.LLM)),
		ai.WithTemperature(g.Temperature),
	}
	if g.MaxTokens > 0 {
		classifierOpts = append(classifierOpts, ai.WithMaxTokens(g.MaxTokens))
	}

	opts := []guard.Option{
		guard.WithBlocklist(blocklist),
		guard.WithClassifiers(guard.DefaultClassifiers(llm, classifierOpts...)...),
	}
	if detector != nil {
		opts = append(opts, guard.WithDetector(detector))
	}
	if g.Parallel {
		opts = append(opts, guard.WithParallelClassifiers())
	}

	return guard.New(guard.Config{
		Language:      g.Language,
		MinConfidence: g.MinConfidence,
		MaxChars:      g.MaxChars,
	}, opts...), nil
}

func rewriteConfig(cfg *config.Config) rewrite.Config {
	rw := cfg.Rewrite
	return rewrite.Config{
		Model:        smallModel(cfg.LLM),
		Temperature:  rw.Temperature,
		MaxTokens:    rw.MaxTokens,
		TopP:         rw.TopP,
		MaxTurnChars: rw.MaxTurnChars,
		Policy: rewrite.Policy{
			MinLength:      rw.MinLength,
			RejectPrefixes: rw.RejectPrefixes,
			RejectPhrases:  rw.RejectPhrases,
		},
	}
}

func smallModel(c config.LLMConfig) string {
	if c.SmallModel != "" {
		return c.SmallModel
	}
	return c.Model
}

func guardModel(c config.LLMConfig) string {
	if c.GuardModel != "" {
		return c.GuardModel
	}
	return smallModel(c)
}

func backendName(override retrieval.Retriever, configured string) string {
	if override != nil {
		return "custom"
	}
	return configured
}

// storePool opens each distinct store config once, so cache and history can
// share a badger directory or redis connection.
type storePool struct {
	app    *App
	stores map[config.StoreConfig]cache.Store
}

func newStorePool(a *App) *storePool {
	return &storePool{app: a, stores: make(map[config.StoreConfig]cache.Store)}
}

func (p *storePool) get(sc config.StoreConfig) (cache.Store, error) {
	if s, ok := p.stores[sc]; ok {
		return s, nil
	}
	s, err := newStore(p.app, sc)
	if err != nil {
		return nil, err
	}
	p.stores[sc] = s
	p.app.onClose(func(context.Context) error { return s.Close() })
	return s, nil
}
