// Package semcache caches answers by question meaning. Entries are stored
// under a hash of the question text but found by embedding similarity, so a
// paraphrase of an answered question hits the cache.
//
// Lookup scans every live entry. That is linear in the number of entries and
// fine for a few thousand; beyond that the scan should move to an ANN index.
package semcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/cache"
)

// Defaults for Config.
const (
	DefaultKeyPrefix = "rag:semantic:"
	DefaultThreshold = 0.95
	DefaultTTL       = 90 * 24 * time.Hour
)

// Config controls matching and retention.
type Config struct {
	KeyPrefix string
	// Threshold is the minimum cosine similarity for a hit. Nil means
	// DefaultThreshold; an explicit 0 accepts any non-negative similarity.
	Threshold *float64
	TTL       time.Duration
}

// DefaultConfig returns the 0.95 threshold and 90 day retention.
func DefaultConfig() Config {
	return Config{KeyPrefix: DefaultKeyPrefix, Threshold: helpers.PtrOf(DefaultThreshold), TTL: DefaultTTL}
}

// Hit is a cached answer for a similar question.
type Hit struct {
	Question   string
	Response   string
	Similarity float64
}

type entry struct {
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache is a semantic response cache over a key-value store. It is safe for
// concurrent use; a scan may or may not see a write that lands mid-scan.
type Cache struct {
	store     cache.Store
	embedder  ai.Embedder
	cfg       Config
	threshold float64
	now       func() time.Time
}

// New creates a cache. Zero or nil fields in cfg take their defaults.
func New(store cache.Store, embedder ai.Embedder, cfg Config) *Cache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &Cache{
		store:     store,
		embedder:  embedder,
		cfg:       cfg,
		threshold: helpers.ValueOr(cfg.Threshold, DefaultThreshold),
		now:       time.Now,
	}
}

// Threshold returns the similarity a hit must reach.
func (c *Cache) Threshold() float64 { return c.threshold }

// Key returns the storage key for question.
func (c *Cache) Key(question string) string {
	sum := md5.Sum([]byte(question))
	return c.cfg.KeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the entry most similar to question when that similarity is at
// least the threshold. Unreadable entries are skipped.
func (c *Cache) Get(ctx context.Context, question string) (Hit, bool, error) {
	vec, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return Hit{}, false, fmt.Errorf("embed question: %w", err)
	}

	keys, err := c.store.Keys(ctx, c.cfg.KeyPrefix)
	if err != nil {
		return Hit{}, false, fmt.Errorf("list cache keys: %w", err)
	}

	var best Hit
	found := false
	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			return Hit{}, false, fmt.Errorf("read cache entry: %w", err)
		}
		if raw == nil {
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			calque.LogDebug(ctx, "skipping corrupt cache entry", "key", key, "error", err)
			continue
		}

		sim := Cosine(vec, e.Embedding)
		if sim >= c.threshold && (!found || sim > best.Similarity) {
			best = Hit{Question: e.Question, Response: e.Response, Similarity: sim}
			found = true
		}
	}

	if found {
		calque.LogDebug(ctx, "semantic cache hit",
			"similarity", best.Similarity, "matched", helpers.Truncate(best.Question, 80))
	}
	return best, found, nil
}

// Set stores response for question with the configured TTL, replacing any
// entry for the same question text.
func (c *Cache) Set(ctx context.Context, question, response string) error {
	vec, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("embed question: %w", err)
	}

	raw, err := json.Marshal(entry{
		Question:  question,
		Response:  response,
		Embedding: vec,
		CreatedAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := c.store.Set(ctx, c.Key(question), raw, c.cfg.TTL); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	calque.LogDebug(ctx, "semantic cache stored", "question", helpers.Truncate(question, 50))
	return nil
}

// Cosine returns the cosine similarity of a and b. Empty, zero-norm or
// differently sized vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
