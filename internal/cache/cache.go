package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or has expired
var ErrNotFound = errors.New("cache: key not found")

// Store is the keyed expiring store shared by the idempotency cache, the
// rate limiter and the quote cache. Implementations may fail transiently;
// callers treat the store as optional infrastructure and degrade rather
// than surface its errors.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Increment atomically increments the integer at key, creating it at 1
	// on first use, and returns the new value
	Increment(ctx context.Context, key string) (int64, error)

	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
}
