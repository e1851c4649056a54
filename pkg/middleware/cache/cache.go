// Package cache defines the key-value store shared by the semantic response
// cache and session history, with TTL support and prefix listing.
//
// Backends: InMemoryStore (this package), badger (embedded, persistent) and
// redis (shared across replicas).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("cache: store closed")

// Store is a TTL key-value backend.
type Store interface {
	// Get returns the value for key, or nil with no error when the key is
	// missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero or less never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend.
	Close() error
}
