package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/internal/cache"
	"github.com/autohaul/autohaul-api/pkg/hashing"
	"github.com/autohaul/autohaul-api/pkg/metrics"
)

const keyPrefix = "price:"

// Cache is a read-through quote cache keyed by a canonical fingerprint of
// the request, so two requests with the same content hit the same entry
// regardless of field ordering.
type Cache struct {
	store  cache.Store
	engine *Engine
	ttl    time.Duration
}

// NewCache creates a quote cache over the given store and engine
func NewCache(store cache.Store, engine *Engine, ttl time.Duration) *Cache {
	return &Cache{store: store, engine: engine, ttl: ttl}
}

// GetOrCompute returns the cached quote for req, computing and storing it
// on a miss. Cache I/O failure never prevents returning a freshly computed
// quote.
func (c *Cache) GetOrCompute(ctx context.Context, req Request) Quote {
	logger := log.With().Str("component", "quote_cache").Logger()

	key, err := c.fingerprint(req)
	if err != nil {
		logger.Warn().Err(err).Msg("fingerprint failed, computing uncached")
		return c.engine.Compute(req)
	}

	cached, err := c.store.Get(ctx, key)
	if err == nil {
		var quote Quote
		if err := json.Unmarshal(cached, &quote); err == nil {
			metrics.CacheHits.WithLabelValues("quote").Inc()
			return quote
		}
		logger.Warn().Err(err).Msg("corrupt cache entry, recomputing")
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn().Err(err).Msg("cache read failed")
	}

	metrics.CacheMisses.WithLabelValues("quote").Inc()
	quote := c.engine.Compute(req)

	if data, err := json.Marshal(quote); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			logger.Warn().Err(err).Msg("cache write failed")
		}
	}

	return quote
}

func (c *Cache) fingerprint(req Request) (string, error) {
	hash, err := hashing.PayloadHash(req)
	if err != nil {
		return "", err
	}
	return keyPrefix + hash, nil
}
