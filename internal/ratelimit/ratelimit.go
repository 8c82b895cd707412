package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/internal/cache"
	"github.com/autohaul/autohaul-api/pkg/metrics"
)

const keyPrefix = "rl:"

// Limiter bounds actions per principal per fixed window, backed by the
// shared keyed expiring store.
//
// Check and increment are two separate store operations, so near the
// ceiling concurrent requests may both pass the check before either
// increments. The limiter is approximate; a server-side script would make
// it exact.
type Limiter struct {
	store   cache.Store
	ceiling int
	window  time.Duration
}

// New creates a fixed-window limiter allowing up to ceiling actions per window
func New(store cache.Store, ceiling int, window time.Duration) *Limiter {
	return &Limiter{store: store, ceiling: ceiling, window: window}
}

// CheckAndConsume returns false when the principal has exhausted its window.
// The first action in a window creates the counter at 1 with the window TTL;
// at or above the ceiling the counter saturates and is not incremented
// further. Store failures degrade to allowed: infrastructure trouble is
// never reported as a policy denial.
func (l *Limiter) CheckAndConsume(ctx context.Context, principalID string) bool {
	key := keyPrefix + principalID

	current, err := l.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		if err := l.store.Set(ctx, key, []byte("1"), l.window); err != nil {
			log.Warn().Err(err).Str("component", "ratelimit").Msg("counter create failed, allowing")
		}
		return true
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "ratelimit").Msg("counter read failed, allowing")
		return true
	}

	count, err := strconv.Atoi(string(current))
	if err != nil {
		log.Warn().Err(err).Str("component", "ratelimit").Msg("malformed counter, allowing")
		return true
	}

	if count >= l.ceiling {
		metrics.RateLimitExceeded.WithLabelValues(principalID).Inc()
		return false
	}

	if _, err := l.store.Increment(ctx, key); err != nil {
		log.Warn().Err(err).Str("component", "ratelimit").Msg("counter increment failed, allowing")
	}
	return true
}
