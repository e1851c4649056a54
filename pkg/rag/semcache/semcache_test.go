package semcache

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/cache"
)

const eps = 1e-9

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := make([]float32, 16)
		b := make([]float32, 16)
		for j := range a {
			a[j] = rng.Float32()*2 - 1
			b[j] = rng.Float32()*2 - 1
		}
		if math.Abs(Cosine(a, b)-Cosine(b, a)) > eps {
			t.Fatalf("Cosine not symmetric for %v, %v", a, b)
		}
		if math.Abs(Cosine(a, a)-1) > 1e-6 {
			t.Fatalf("Cosine(a, a) = %v", Cosine(a, a))
		}
	}
}

// unitPair returns two unit vectors whose cosine is exactly sim.
func unitPair(sim float64) ([]float32, []float32) {
	return []float32{1, 0}, []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestCache_ParaphraseHit(t *testing.T) {
	e1, e2 := unitPair(0.97)
	embedder := ai.NewMockEmbedder(map[string][]float32{
		"Triệu chứng cảm cúm là gì?":         e1,
		"Cảm cúm có những triệu chứng nào?": e2,
	})
	c := New(cache.NewInMemoryStore(), embedder, Config{Threshold: helpers.PtrOf(0.95)})
	ctx := context.Background()

	if err := c.Set(ctx, "Triệu chứng cảm cúm là gì?", "Sốt, ho, đau họng."); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	hit, ok, err := c.Get(ctx, "Cảm cúm có những triệu chứng nào?")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v; want hit", hit, ok, err)
	}
	if hit.Response != "Sốt, ho, đau họng." || hit.Question != "Triệu chứng cảm cúm là gì?" {
		t.Errorf("Get() = %+v", hit)
	}
	if math.Abs(hit.Similarity-0.97) > 1e-3 {
		t.Errorf("Similarity = %v", hit.Similarity)
	}
}

func TestCache_ThresholdMonotonic(t *testing.T) {
	query := []float32{1, 0}
	_, e90 := unitPair(0.90)
	_, e80 := unitPair(0.80)
	embedder := ai.NewMockEmbedder(map[string][]float32{"q": query, "a": e90, "b": e80})
	store := cache.NewInMemoryStore()
	ctx := context.Background()

	seed := New(store, embedder, Config{})
	_ = seed.Set(ctx, "a", "A")
	_ = seed.Set(ctx, "b", "B")

	prevHit := false
	for _, th := range []float64{0.99, 0.95, 0.91, 0.89, 0.85, 0.79, 0.5, 0} {
		c := New(store, embedder, Config{Threshold: helpers.PtrOf(th)})
		hit, ok, err := c.Get(ctx, "q")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if prevHit && !ok {
			t.Fatalf("lowering threshold to %v turned a hit into a miss", th)
		}
		wantHit := th < 0.9
		if ok != wantHit {
			t.Errorf("threshold %v: hit = %v, want %v", th, ok, wantHit)
		}
		if ok && hit.Response != "A" {
			t.Errorf("threshold %v: best = %q, want A", th, hit.Response)
		}
		prevHit = ok
	}
}

func TestCache_ExplicitZeroThreshold(t *testing.T) {
	query, weak := unitPair(0.1)
	embedder := ai.NewMockEmbedder(map[string][]float32{"q": query, "weak": weak})
	store := cache.NewInMemoryStore()
	ctx := context.Background()

	if th := New(store, embedder, Config{}).Threshold(); th != DefaultThreshold {
		t.Errorf("unset threshold = %v, want %v", th, DefaultThreshold)
	}

	c := New(store, embedder, Config{Threshold: helpers.PtrOf(0.0)})
	if th := c.Threshold(); th != 0 {
		t.Fatalf("explicit zero threshold became %v", th)
	}
	if err := c.Set(ctx, "weak", "W"); err != nil {
		t.Fatal(err)
	}
	hit, ok, err := c.Get(ctx, "q")
	if err != nil || !ok || hit.Response != "W" {
		t.Errorf("Get() = %+v, %v, %v, want hit on a 0.1 similarity entry", hit, ok, err)
	}
}

func TestCache_KeyAndOverwrite(t *testing.T) {
	store := cache.NewInMemoryStore()
	c := New(store, ai.NewMockEmbedder(nil), Config{})
	ctx := context.Background()

	key := c.Key("Sốt xuất huyết")
	if len(key) != len(DefaultKeyPrefix)+32 || key[:len(DefaultKeyPrefix)] != DefaultKeyPrefix {
		t.Errorf("Key() = %q", key)
	}

	_ = c.Set(ctx, "Sốt xuất huyết", "cũ")
	_ = c.Set(ctx, "Sốt xuất huyết", "mới")
	if store.Len() != 1 {
		t.Errorf("entries = %d, want 1", store.Len())
	}
	hit, ok, _ := c.Get(ctx, "Sốt xuất huyết")
	if !ok || hit.Response != "mới" {
		t.Errorf("Get() = %+v, %v", hit, ok)
	}
}

func TestCache_SkipsCorruptEntries(t *testing.T) {
	store := cache.NewInMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, DefaultKeyPrefix+"junk", []byte("{not json"), time.Hour)
	_ = store.Set(ctx, "rag:history:s1", []byte("[]"), time.Hour)

	c := New(store, ai.NewMockEmbedder(nil), Config{})
	_ = c.Set(ctx, "Ho khan", "Uống nước ấm.")

	hit, ok, err := c.Get(ctx, "Ho khan")
	if err != nil || !ok || hit.Response != "Uống nước ấm." {
		t.Errorf("Get() = %+v, %v, %v", hit, ok, err)
	}
}

func TestCache_EmptyMiss(t *testing.T) {
	c := New(cache.NewInMemoryStore(), ai.NewMockEmbedder(nil), Config{})
	if _, ok, err := c.Get(context.Background(), "Đau lưng"); ok || err != nil {
		t.Errorf("Get() = %v, %v; want miss", ok, err)
	}
}

func TestCache_EmbedError(t *testing.T) {
	embedder := ai.NewMockEmbedder(nil)
	embedder.Err = errors.New("embedding service down")
	c := New(cache.NewInMemoryStore(), embedder, Config{})

	if _, _, err := c.Get(context.Background(), "x"); !errors.Is(err, embedder.Err) {
		t.Errorf("Get() error = %v", err)
	}
	if err := c.Set(context.Background(), "x", "y"); !errors.Is(err, embedder.Err) {
		t.Errorf("Set() error = %v", err)
	}
}

func TestCache_TTL(t *testing.T) {
	store := &recordingStore{Store: cache.NewInMemoryStore()}
	c := New(store, ai.NewMockEmbedder(nil), Config{TTL: 48 * time.Hour})
	_ = c.Set(context.Background(), "q", "a")
	if store.ttl != 48*time.Hour {
		t.Errorf("ttl = %v", store.ttl)
	}
}

type recordingStore struct {
	cache.Store
	ttl time.Duration
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.ttl = ttl
	return s.Store.Set(ctx, key, value, ttl)
}
