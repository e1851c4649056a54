package config

import (
	"time"

	"github.com/calque-ai/medrag/pkg/helpers"
)

// Default returns the reference deployment settings: Groq-hosted models,
// bge-m3 embeddings through Ollama, Qdrant plus MongoDB retrieval and an in-memory cache.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		LLM: LLMConfig{
			Provider:   "groq",
			Model:      "qwen/qwen3-32b",
			SmallModel: "openai/gpt-oss-20b",
			GuardModel: "openai/gpt-oss-safeguard-20b",
			MaxRetries: 2,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "bge-m3",
			Dimensions: 1024,
		},
		Guard: GuardConfig{
			Language:      "vi",
			MinConfidence: 0.80,
			MaxChars:      4000,
			BlocklistFile: "data/blocked_keywords.txt",
			Temperature:   0,
			MaxTokens:     1024,
		},
		Rewrite: RewriteConfig{
			Temperature:    0.1,
			MaxTokens:      400,
			TopP:           0.95,
			MaxTurnChars:   800,
			MinLength:      5,
			RejectPrefixes: []string{"tôi", "bạn", "chào"},
			RejectPhrases:  []string{"là trợ lý", "xin lỗi"},
		},
		Cache: CacheConfig{
			Enabled:   true,
			Store:     StoreConfig{Backend: "memory", Path: "data/cache"},
			KeyPrefix: "rag:semantic:",
			Threshold: 0.95,
			TTL:       90 * 24 * time.Hour,
		},
		History: HistoryConfig{
			Store:    StoreConfig{Backend: "memory", Path: "data/history"},
			TTL:      7 * 24 * time.Hour,
			MaxTurns: 20,
		},
		Retrieval: RetrievalConfig{
			TopKDense:       10,
			TopKBM25:        15,
			TopKFinal:       6,
			UseRRF:          true,
			RRFK:            60,
			MaxContextChars: 15000,
			DenseBackend:    "qdrant",
			LexicalBackend:  "mongo",
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6334",
				Collection: "medical_healthcare_rag",
			},
			Postgres: PostgresConfig{Table: "documents", TextSearchConfig: "simple"},
			Weaviate: WeaviateConfig{ClassName: "MedicalPassage"},
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "medical_rag",
				Collection: "docstore",
				Namespace:  "medical_rag_vi_2026",
			},
		},
		Answer: AnswerConfig{Temperature: 0.4, MaxTokens: 4000, TopP: 0.9, Timeout: 2 * time.Minute, Attempts: 1},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
			Tracing: TracingConfig{
				ServiceName: "medrag",
				Endpoint:    "localhost:4317",
				Protocol:    "grpc",
				Insecure:    true,
				SampleRate:  1,
			},
		},
	}
}

// ApplyEnv overlays environment variables. Provider credentials use their
// usual names; everything else is MEDRAG_ prefixed.
func (c *Config) ApplyEnv() {
	c.Log.Level = helpers.GetStringFromEnv("MEDRAG_LOG_LEVEL", c.Log.Level)
	c.Log.Format = helpers.GetStringFromEnv("MEDRAG_LOG_FORMAT", c.Log.Format)

	c.LLM.Provider = helpers.GetStringFromEnv("MEDRAG_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = helpers.GetStringFromEnv("MEDRAG_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = helpers.GetStringFromEnv("MEDRAG_LLM_MODEL", c.LLM.Model)
	c.LLM.SmallModel = helpers.GetStringFromEnv("MEDRAG_LLM_SMALL_MODEL", c.LLM.SmallModel)
	c.LLM.GuardModel = helpers.GetStringFromEnv("MEDRAG_LLM_GUARD_MODEL", c.LLM.GuardModel)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = providerKey(c.LLM.Provider)
	}

	c.Embedding.Provider = helpers.GetStringFromEnv("MEDRAG_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = helpers.GetStringFromEnv("MEDRAG_EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.Model = helpers.GetStringFromEnv("MEDRAG_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimensions = helpers.GetIntFromEnv("MEDRAG_EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = providerKey(c.Embedding.Provider)
	}

	c.Guard.MinConfidence = helpers.GetFloatFromEnv("MEDRAG_GUARD_MIN_CONFIDENCE", c.Guard.MinConfidence)
	c.Guard.MaxChars = helpers.GetIntFromEnv("MEDRAG_GUARD_MAX_CHARS", c.Guard.MaxChars)
	c.Guard.BlocklistFile = helpers.GetStringFromEnv("MEDRAG_GUARD_BLOCKLIST_FILE", c.Guard.BlocklistFile)
	c.Guard.Parallel = helpers.GetBoolFromEnv("MEDRAG_GUARD_PARALLEL", c.Guard.Parallel)

	c.Cache.Enabled = helpers.GetBoolFromEnv("MEDRAG_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.Store.Backend = helpers.GetStringFromEnv("MEDRAG_CACHE_BACKEND", c.Cache.Store.Backend)
	c.Cache.Store.Path = helpers.GetStringFromEnv("MEDRAG_CACHE_PATH", c.Cache.Store.Path)
	c.Cache.Store.RedisURL = helpers.GetStringFromEnv("MEDRAG_REDIS_URL", c.Cache.Store.RedisURL)
	c.Cache.Threshold = helpers.GetFloatFromEnv("MEDRAG_CACHE_THRESHOLD", c.Cache.Threshold)
	c.Cache.TTL = helpers.GetDurationFromEnv("MEDRAG_CACHE_TTL", c.Cache.TTL)

	c.History.Store.Backend = helpers.GetStringFromEnv("MEDRAG_HISTORY_BACKEND", c.History.Store.Backend)
	c.History.Store.Path = helpers.GetStringFromEnv("MEDRAG_HISTORY_PATH", c.History.Store.Path)
	c.History.Store.RedisURL = helpers.GetStringFromEnv("MEDRAG_REDIS_URL", c.History.Store.RedisURL)

	r := &c.Retrieval
	r.TopKFinal = helpers.GetIntFromEnv("MEDRAG_TOP_K_FINAL", r.TopKFinal)
	r.UseRRF = helpers.GetBoolFromEnv("MEDRAG_USE_RRF", r.UseRRF)
	r.DenseBackend = helpers.GetStringFromEnv("MEDRAG_DENSE_BACKEND", r.DenseBackend)
	r.LexicalBackend = helpers.GetStringFromEnv("MEDRAG_LEXICAL_BACKEND", r.LexicalBackend)
	r.Qdrant.URL = helpers.GetStringFromEnv("MEDRAG_QDRANT_URL", r.Qdrant.URL)
	r.Qdrant.APIKey = helpers.GetStringFromEnv("QDRANT_API_KEY", r.Qdrant.APIKey)
	r.Qdrant.Collection = helpers.GetStringFromEnv("MEDRAG_QDRANT_COLLECTION", r.Qdrant.Collection)
	r.Postgres.DSN = helpers.GetStringFromEnv("MEDRAG_POSTGRES_DSN", r.Postgres.DSN)
	r.Weaviate.URL = helpers.GetStringFromEnv("MEDRAG_WEAVIATE_URL", r.Weaviate.URL)
	r.Weaviate.APIKey = helpers.GetStringFromEnv("WEAVIATE_API_KEY", r.Weaviate.APIKey)
	r.Mongo.URI = helpers.GetStringFromEnv("MEDRAG_MONGO_URI", r.Mongo.URI)
	r.Mongo.Database = helpers.GetStringFromEnv("MEDRAG_MONGO_DATABASE", r.Mongo.Database)
	r.Mongo.Namespace = helpers.GetStringFromEnv("MEDRAG_MONGO_NAMESPACE", r.Mongo.Namespace)

	c.Server.Addr = helpers.GetStringFromEnv("MEDRAG_ADDR", c.Server.Addr)

	c.Telemetry.Metrics = helpers.GetBoolFromEnv("MEDRAG_METRICS", c.Telemetry.Metrics)
	c.Telemetry.Tracing.Enabled = helpers.GetBoolFromEnv("MEDRAG_TRACING", c.Telemetry.Tracing.Enabled)
	c.Telemetry.Tracing.Endpoint = helpers.GetStringFromEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Tracing.Endpoint)
}

func providerKey(provider string) string {
	switch provider {
	case "groq":
		return helpers.GetStringFromEnv("GROQ_API_KEY", "")
	case "openai":
		return helpers.GetStringFromEnv("OPENAI_API_KEY", "")
	case "gemini":
		return helpers.GetStringFromEnv("GOOGLE_API_KEY", "")
	default:
		return ""
	}
}
