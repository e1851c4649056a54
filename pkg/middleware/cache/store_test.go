package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := newInMemoryStore(0, clock.Now)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestInMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	got, err := s.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %q, %v; want nil, nil", got, err)
	}

	value := []byte("hello")
	if err := s.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, err = s.Get(ctx, "k")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get(k) = %q, %v; want hello", got, err)
	}

	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "hello" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestInMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	_ = s.Set(ctx, "short", []byte("a"), time.Minute)
	_ = s.Set(ctx, "forever", []byte("b"), 0)

	clock.Advance(2 * time.Minute)

	if got, _ := s.Get(ctx, "short"); got != nil {
		t.Errorf("expired entry returned %q", got)
	}
	if got, _ := s.Get(ctx, "forever"); string(got) != "b" {
		t.Errorf("ttl=0 entry = %q, want b", got)
	}

	s.cleanup()
	if s.Len() != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", s.Len())
	}
}

func TestInMemoryStore_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	_ = s.Set(ctx, "rag:semantic:a", []byte("1"), time.Hour)
	_ = s.Set(ctx, "rag:semantic:b", []byte("2"), time.Minute)
	_ = s.Set(ctx, "history:x", []byte("3"), time.Hour)

	keys, err := s.Keys(ctx, "rag:semantic:")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "rag:semantic:a" {
		t.Errorf("Keys() = %v", keys)
	}

	clock.Advance(30 * time.Minute)
	keys, _ = s.Keys(ctx, "rag:semantic:")
	if len(keys) != 1 {
		t.Errorf("Keys() after expiry = %v, want one key", keys)
	}

	if err := s.Delete(ctx, "rag:semantic:a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	keys, _ = s.Keys(ctx, "")
	if len(keys) != 1 || keys[0] != "history:x" {
		t.Errorf("Keys(\"\") = %v", keys)
	}
}

func TestInMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after close error = %v", err)
	}
	if err := s.Set(ctx, "k", nil, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after close error = %v", err)
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			_ = s.Set(ctx, key, []byte{byte(i)}, time.Hour)
			_, _ = s.Get(ctx, key)
			_, _ = s.Keys(ctx, "")
		}(i)
	}
	wg.Wait()

	if s.Len() != 26 {
		t.Errorf("Len() = %d, want 26", s.Len())
	}
}
