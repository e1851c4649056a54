package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often InMemoryStore evicts expired entries.
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryStore is a process-local Store.
type InMemoryStore struct {
	data   map[string]*cacheEntry
	mu     sync.RWMutex
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
	closed bool
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewInMemoryStore creates a store and starts its background cleanup.
func NewInMemoryStore() *InMemoryStore {
	return newInMemoryStore(DefaultCleanupInterval, time.Now)
}

func newInMemoryStore(interval time.Duration, now func() time.Time) *InMemoryStore {
	store := &InMemoryStore{
		data: make(map[string]*cacheEntry),
		now:  now,
		done: make(chan struct{}),
	}
	if interval > 0 {
		go store.backgroundCleanup(interval)
	}
	return store
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	entry, exists := s.data[key]
	if !exists || entry.expired(s.now()) {
		return nil, nil
	}

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Set implements Store.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	dataCopy := make([]byte, len(value))
	copy(dataCopy, value)

	entry := &cacheEntry{data: dataCopy}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = entry
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.data, key)
	return nil
}

// Keys implements Store.
func (s *InMemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	now := s.now()
	var keys []string
	for key, entry := range s.data {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close stops the cleanup goroutine and drops all entries.
func (s *InMemoryStore) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.data = nil
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemoryStore) backgroundCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *InMemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}
