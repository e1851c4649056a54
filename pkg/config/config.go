// Package config loads medrag settings from a YAML file, a .env file and
// MEDRAG_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrInvalid marks a configuration that cannot start the service.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full service configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Guard     GuardConfig     `yaml:"guard"`
	Rewrite   RewriteConfig   `yaml:"rewrite"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig selects the completion provider and models.
type LLMConfig struct {
	// Provider is groq, openai, ollama or gemini.
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	SmallModel string `yaml:"small_model"`
	GuardModel string `yaml:"guard_model"`
	MaxRetries int    `yaml:"max_retries"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is openai, ollama or gemini.
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GuardConfig tunes the safety gate.
type GuardConfig struct {
	Language      string  `yaml:"language"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxChars      int     `yaml:"max_chars"`
	BlocklistFile string  `yaml:"blocklist_file"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	Parallel      bool    `yaml:"parallel"`
}

// RewriteConfig tunes question rewriting and its output policy.
type RewriteConfig struct {
	Temperature    float64  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TopP           float64  `yaml:"top_p"`
	MaxTurnChars   int      `yaml:"max_turn_chars"`
	MinLength      int      `yaml:"min_length"`
	RejectPrefixes []string `yaml:"reject_prefixes"`
	RejectPhrases  []string `yaml:"reject_phrases"`
}

// StoreConfig selects a key-value backend.
type StoreConfig struct {
	// Backend is memory, badger or redis.
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

// CacheConfig tunes the semantic response cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Store     StoreConfig   `yaml:"store"`
	KeyPrefix string        `yaml:"key_prefix"`
	Threshold float64       `yaml:"threshold"`
	TTL       time.Duration `yaml:"ttl"`
}

// HistoryConfig tunes per-session chat history kept by transports.
type HistoryConfig struct {
	Store    StoreConfig   `yaml:"store"`
	TTL      time.Duration `yaml:"ttl"`
	MaxTurns int           `yaml:"max_turns"`
}

// RetrievalConfig sizes hybrid retrieval and selects its backends.
type RetrievalConfig struct {
	TopKDense        int     `yaml:"top_k_dense"`
	TopKBM25         int     `yaml:"top_k_bm25"`
	TopKFinal        int     `yaml:"top_k_final"`
	UseRRF           bool    `yaml:"use_rrf"`
	RRFK             int     `yaml:"rrf_k"`
	MaxContextChars  int     `yaml:"max_context_chars"`
	DedupeSimilarity float64 `yaml:"dedupe_similarity"`

	// DenseBackend is qdrant, pgvector or weaviate.
	DenseBackend string `yaml:"dense_backend"`
	// LexicalBackend is mongo, pgvector or weaviate.
	LexicalBackend string `yaml:"lexical_backend"`

	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Postgres PostgresConfig `yaml:"postgres"`
	Weaviate WeaviateConfig `yaml:"weaviate"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

// QdrantConfig locates the Qdrant collection.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	VectorName string `yaml:"vector_name"`
}

// PostgresConfig locates the pgvector table.
type PostgresConfig struct {
	DSN              string `yaml:"dsn"`
	Table            string `yaml:"table"`
	TextSearchConfig string `yaml:"text_search_config"`
}

// WeaviateConfig locates the Weaviate class.
type WeaviateConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ClassName string `yaml:"class_name"`
}

// MongoConfig locates the MongoDB document store.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Namespace  string `yaml:"namespace"`
}

// AnswerConfig tunes the answer completion.
type AnswerConfig struct {
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig enables metrics and tracing.
type TelemetryConfig struct {
	Metrics bool          `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	switch c.LLM.Provider {
	case "groq", "openai", "gemini":
		if c.LLM.APIKey == "" {
			add("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case "ollama":
	default:
		add("llm.provider %q is not one of groq, openai, ollama, gemini", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		add("llm.model is required")
	}

	switch c.Embedding.Provider {
	case "openai", "gemini":
		if c.Embedding.APIKey == "" {
			add("embedding.api_key is required for provider %q", c.Embedding.Provider)
		}
	case "ollama":
	default:
		add("embedding.provider %q is not one of openai, ollama, gemini", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		add("embedding.model is required")
	}

	if c.Guard.MinConfidence < 0 || c.Guard.MinConfidence > 1 {
		add("guard.min_confidence must be within [0, 1]")
	}
	if c.Guard.MaxChars <= 0 {
		add("guard.max_chars must be positive")
	}

	if c.Cache.Enabled {
		if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
			add("cache.threshold must be within [0, 1]")
		}
		validateStore(&problems, "cache.store", c.Cache.Store)
	}
	validateStore(&problems, "history.store", c.History.Store)

	r := c.Retrieval
	if r.TopKDense <= 0 || r.TopKBM25 <= 0 || r.TopKFinal <= 0 {
		add("retrieval top_k values must be positive")
	}
	if r.MaxContextChars <= 0 {
		add("retrieval.max_context_chars must be positive")
	}
	switch r.DenseBackend {
	case "qdrant":
		if r.Qdrant.URL == "" || r.Qdrant.Collection == "" {
			add("retrieval.qdrant.url and collection are required")
		}
	case "pgvector":
		if r.Postgres.DSN == "" {
			add("retrieval.postgres.dsn is required")
		}
	case "weaviate":
		if r.Weaviate.URL == "" || r.Weaviate.ClassName == "" {
			add("retrieval.weaviate.url and class_name are required")
		}
	default:
		add("retrieval.dense_backend %q is not one of qdrant, pgvector, weaviate", r.DenseBackend)
	}
	switch r.LexicalBackend {
	case "mongo":
		if r.Mongo.URI == "" || r.Mongo.Database == "" || r.Mongo.Collection == "" {
			add("retrieval.mongo.uri, database and collection are required")
		}
	case "pgvector":
		if r.Postgres.DSN == "" {
			add("retrieval.postgres.dsn is required")
		}
	case "weaviate":
		if r.Weaviate.URL == "" || r.Weaviate.ClassName == "" {
			add("retrieval.weaviate.url and class_name are required")
		}
	default:
		add("retrieval.lexical_backend %q is not one of mongo, pgvector, weaviate", r.LexicalBackend)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func validateStore(problems *[]string, name string, s StoreConfig) {
	switch s.Backend {
	case "memory":
	case "badger":
	case "redis":
		if s.RedisURL == "" {
			*problems = append(*problems, name+".redis_url is required for the redis backend")
		}
	default:
		*problems = append(*problems, fmt.Sprintf("%s.backend %q is not one of memory, badger, redis", name, s.Backend))
	}
}
