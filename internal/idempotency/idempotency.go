package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/autohaul/autohaul-api/internal/cache"
)

const keyPrefix = "idemp:"

// Cache memoizes handler responses keyed by a client-supplied token so that
// retried writes observe the first execution's result.
//
// There is no lock around the caller's compute-then-Store sequence: two
// concurrent first-time requests with the same fresh token can both execute
// the underlying mutation. This window is an accepted weaker guarantee;
// closing it would take a SETNX-style reservation in the store.
type Cache struct {
	store cache.Store
	ttl   time.Duration
}

// New creates an idempotency cache with the given response TTL
func New(store cache.Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Lookup returns the response previously stored for token, or nil when the
// token is unknown or expired. Store errors other than absence are returned
// so the caller can decide to proceed uncached.
func (c *Cache) Lookup(ctx context.Context, token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}

	val, err := c.store.Get(ctx, keyPrefix+token)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Store records the response bytes for token. Once it succeeds, Lookup
// returns byte-identical data until the TTL elapses.
func (c *Cache) Store(ctx context.Context, token string, response []byte) error {
	return c.store.Set(ctx, keyPrefix+token, response, c.ttl)
}
