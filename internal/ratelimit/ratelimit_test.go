package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohaul/autohaul-api/internal/cache"
)

type failingStore struct{}

var errStoreDown = errors.New("store unreachable")

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (failingStore) Increment(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) Ping(context.Context) error                       { return errStoreDown }

func TestAllowsUpToCeiling(t *testing.T) {
	limiter := New(cache.NewMemoryStore(), 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.CheckAndConsume(ctx, "user-1"), "action %d should be allowed", i+1)
	}

	assert.False(t, limiter.CheckAndConsume(ctx, "user-1"), "action above ceiling should be denied")
}

func TestDenialSaturatesCounter(t *testing.T) {
	store := cache.NewMemoryStore()
	limiter := New(store, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		limiter.CheckAndConsume(ctx, "user-1")
	}

	// Counter stops at the ceiling instead of growing unbounded
	val, err := store.Get(ctx, "rl:user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), val)
}

func TestNewWindowAfterExpiry(t *testing.T) {
	store := cache.NewMemoryStore()
	current := time.Now()
	store.SetClock(func() time.Time { return current })

	limiter := New(store, 2, time.Minute)
	ctx := context.Background()

	require.True(t, limiter.CheckAndConsume(ctx, "user-1"))
	require.True(t, limiter.CheckAndConsume(ctx, "user-1"))
	require.False(t, limiter.CheckAndConsume(ctx, "user-1"))

	current = current.Add(2 * time.Minute)

	assert.True(t, limiter.CheckAndConsume(ctx, "user-1"), "new window should allow again")
}

func TestPrincipalsAreIndependent(t *testing.T) {
	limiter := New(cache.NewMemoryStore(), 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		principal := fmt.Sprintf("user-%d", i)
		assert.True(t, limiter.CheckAndConsume(ctx, principal))
	}
}

func TestStoreFailureDegradesToAllowed(t *testing.T) {
	limiter := New(failingStore{}, 1, time.Minute)
	ctx := context.Background()

	// Infra failure must never surface as a policy denial
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.CheckAndConsume(ctx, "user-1"))
	}
}
