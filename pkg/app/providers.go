package app

import (
	"context"
	"fmt"

	"github.com/calque-ai/medrag/pkg/config"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/ai/gemini"
	"github.com/calque-ai/medrag/pkg/middleware/ai/ollama"
	"github.com/calque-ai/medrag/pkg/middleware/ai/openai"
	"github.com/calque-ai/medrag/pkg/middleware/cache"
	"github.com/calque-ai/medrag/pkg/middleware/cache/badger"
	"github.com/calque-ai/medrag/pkg/middleware/cache/redis"
	"github.com/calque-ai/medrag/pkg/middleware/observability"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval/mongo"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval/pgvector"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval/qdrant"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval/weaviate"
)

// Source tags stamped on retrieved passages.
const (
	SourceDense   = "dense"
	SourceLexical = "bm25"
)

// newLLM returns one completion client; stages pick their model per call.
func newLLM(ctx context.Context, c config.LLMConfig) (ai.Client, error) {
	switch c.Provider {
	case "groq":
		return openai.NewGroq(c.Model, openai.WithConfig(openAIConfig(c)))
	case "openai":
		return openai.New(c.Model, openai.WithConfig(openAIConfig(c)))
	case "ollama":
		return ollama.New(c.Model, ollama.WithConfig(&ollama.Config{Host: c.BaseURL}))
	case "gemini":
		return gemini.New(ctx, c.Model, gemini.WithConfig(&gemini.Config{APIKey: c.APIKey}))
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
}

func openAIConfig(c config.LLMConfig) *openai.Config {
	cfg := &openai.Config{APIKey: c.APIKey, BaseURL: c.BaseURL}
	if c.MaxRetries > 0 {
		cfg.MaxRetries = helpers.PtrOf(c.MaxRetries)
	}
	return cfg
}

func newEmbedder(ctx context.Context, c config.EmbeddingConfig) (ai.Embedder, error) {
	switch c.Provider {
	case "openai":
		cfg := &openai.Config{APIKey: c.APIKey, BaseURL: c.BaseURL, EmbeddingModel: c.Model}
		if c.Dimensions > 0 {
			cfg.EmbeddingDimensions = helpers.PtrOf(c.Dimensions)
		}
		return openai.New(c.Model, openai.WithConfig(cfg))
	case "ollama":
		return ollama.New(c.Model, ollama.WithConfig(&ollama.Config{Host: c.BaseURL, EmbeddingModel: c.Model}))
	case "gemini":
		return gemini.New(ctx, c.Model, gemini.WithConfig(&gemini.Config{APIKey: c.APIKey, EmbeddingModel: c.Model}))
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
}

func newStore(a *App, sc config.StoreConfig) (cache.Store, error) {
	switch sc.Backend {
	case "memory":
		return cache.NewInMemoryStore(), nil
	case "badger":
		return badger.NewStore(sc.Path)
	case "redis":
		s, err := redis.NewStore(sc.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Health.Register(&observability.FuncHealthCheck{
			CheckName:    "redis",
			CheckFunc:    s.Ping,
			CheckTimeout: healthTimeout,
		})
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// backends opens each retrieval backend at most once; pgvector and weaviate
// can serve both the dense and the lexical side.
type backends struct {
	app      *App
	embedder ai.Embedder

	pg *pgvector.Client
	wv *weaviate.Client
}

func newBackends(a *App, embedder ai.Embedder) *backends {
	return &backends{app: a, embedder: embedder}
}

func (b *backends) dense(ctx context.Context) (retrieval.Retriever, error) {
	r := b.app.Config.Retrieval

	var searcher retrieval.Searcher
	switch r.DenseBackend {
	case "qdrant":
		c, err := qdrant.New(&qdrant.Config{
			URL:            r.Qdrant.URL,
			APIKey:         r.Qdrant.APIKey,
			CollectionName: r.Qdrant.Collection,
			VectorName:     r.Qdrant.VectorName,
		})
		if err != nil {
			return nil, err
		}
		b.track("qdrant", c)
		searcher = c
	case "pgvector":
		c, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		searcher = c
	case "weaviate":
		c, err := b.weaviate()
		if err != nil {
			return nil, err
		}
		searcher = c
	default:
		return nil, fmt.Errorf("unknown dense backend %q", r.DenseBackend)
	}
	return retrieval.NewDense(b.embedder, searcher, SourceDense)
}

func (b *backends) lexical(ctx context.Context) (retrieval.Retriever, error) {
	r := b.app.Config.Retrieval

	var searcher retrieval.Searcher
	switch r.LexicalBackend {
	case "mongo":
		c, err := mongo.New(ctx, &mongo.Config{
			URI:        r.Mongo.URI,
			Database:   r.Mongo.Database,
			Collection: r.Mongo.Collection,
			Namespace:  r.Mongo.Namespace,
		})
		if err != nil {
			return nil, err
		}
		b.track("mongo", c)
		searcher = c
	case "pgvector":
		c, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		searcher = c.Lexical()
	case "weaviate":
		c, err := b.weaviate()
		if err != nil {
			return nil, err
		}
		searcher = c.Lexical()
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", r.LexicalBackend)
	}
	return retrieval.NewLexical(searcher, SourceLexical)
}

func (b *backends) postgres(ctx context.Context) (*pgvector.Client, error) {
	if b.pg != nil {
		return b.pg, nil
	}
	r := b.app.Config.Retrieval
	c, err := pgvector.New(ctx, &pgvector.Config{
		ConnectionString: r.Postgres.DSN,
		TableName:        r.Postgres.Table,
		VectorDimension:  b.app.Config.Embedding.Dimensions,
		TextSearchConfig: r.Postgres.TextSearchConfig,
		Embedder:         b.embedder,
	})
	if err != nil {
		return nil, err
	}
	b.track("pgvector", c)
	b.pg = c
	return c, nil
}

func (b *backends) weaviate() (*weaviate.Client, error) {
	if b.wv != nil {
		return b.wv, nil
	}
	r := b.app.Config.Retrieval
	c, err := weaviate.New(&weaviate.Config{
		URL:       r.Weaviate.URL,
		APIKey:    r.Weaviate.APIKey,
		ClassName: r.Weaviate.ClassName,
	})
	if err != nil {
		return nil, err
	}
	b.track("weaviate", c)
	b.wv = c
	return c, nil
}

// track registers a backend's health check and closes it with the App.
func (b *backends) track(name string, s retrieval.Store) {
	b.app.Health.Register(&observability.FuncHealthCheck{
		CheckName:    name,
		CheckFunc:    s.Health,
		CheckTimeout: healthTimeout,
	})
	b.app.onClose(func(context.Context) error { return s.Close() })
}
