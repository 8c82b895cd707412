package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autohaul/autohaul-api/internal/leads"
	"github.com/autohaul/autohaul-api/internal/pricing"
	"github.com/autohaul/autohaul-api/internal/types"
	"github.com/autohaul/autohaul-api/internal/webhook"
)

type workerEnv struct {
	db      *gorm.DB
	service *Service
	pool    *WorkerPool
	events  chan webhook.Event
	sleeps  []time.Duration
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Lead{}, &types.Order{}))

	events := make(chan webhook.Event, 16)
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		events <- ev
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.Close)

	service := NewService(db, leads.NewService(db))
	pool := NewWorkerPool(service, pricing.NewEngine(), webhook.NewDispatcher(sink.URL, time.Second, 3), 1)

	env := &workerEnv{db: db, service: service, pool: pool, events: events}
	pool.sleep = func(d time.Duration) {
		env.sleeps = append(env.sleeps, d)
	}
	return env
}

func (e *workerEnv) seedOrder(t *testing.T, finalPrice *float64) *types.Order {
	t.Helper()
	lead := &types.Lead{Name: "Jane Doe", VehicleType: "suv", Operable: true, CreatedBy: 1}
	require.NoError(t, e.db.Create(lead).Error)

	order := &types.Order{
		LeadID:     lead.ID,
		Status:     types.OrderStatusQuoted,
		BasePrice:  100,
		FinalPrice: finalPrice,
		CreatedBy:  1,
	}
	require.NoError(t, e.db.Create(order).Error)
	return order
}

func TestRepriceComputesFromLead(t *testing.T) {
	env := newWorkerEnv(t)
	order := env.seedOrder(t, nil)

	env.pool.process(context.Background(), order.ID)

	// base 100 + 100km*1.5 + suv 20 + operable 15 = 285
	updated, err := env.service.GetOrder(order.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.FinalPrice)
	assert.Equal(t, 285.0, *updated.FinalPrice)
}

func TestRepricePriceChangeSendsWebhook(t *testing.T) {
	env := newWorkerEnv(t)
	oldPrice := 180.0
	order := env.seedOrder(t, &oldPrice)

	env.pool.process(context.Background(), order.ID)

	select {
	case ev := <-env.events:
		assert.Equal(t, order.ID, ev.OrderID)
		assert.Equal(t, 285.0, ev.FinalPrice)
		require.NotNil(t, ev.OldPrice)
		assert.Equal(t, 180.0, *ev.OldPrice)
		assert.Equal(t, types.OrderStatusQuoted, ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a webhook event")
	}
}

func TestRepriceUnchangedPriceNoWebhook(t *testing.T) {
	env := newWorkerEnv(t)
	samePrice := 285.0
	order := env.seedOrder(t, &samePrice)

	env.pool.process(context.Background(), order.ID)

	select {
	case ev := <-env.events:
		t.Fatalf("unexpected webhook event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRepriceMissingOrderIsNotAnError(t *testing.T) {
	env := newWorkerEnv(t)

	env.pool.process(context.Background(), 999)

	assert.Empty(t, env.sleeps, "missing order must not trigger retries")
}

func TestRepriceFailureRetriedWithBackoff(t *testing.T) {
	env := newWorkerEnv(t)
	order := env.seedOrder(t, nil)

	// Force every attempt to fail at the load step
	require.NoError(t, env.db.Migrator().DropTable(&types.Order{}))

	env.pool.process(context.Background(), order.ID)

	// Initial attempt plus 3 retries, backoff 2^attempt seconds
	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}, env.sleeps)
}

func TestWorkerPoolEndToEnd(t *testing.T) {
	env := newWorkerEnv(t)
	order := env.seedOrder(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	env.pool.Start(ctx)

	require.True(t, env.pool.Enqueue(order.ID))

	require.Eventually(t, func() bool {
		updated, err := env.service.GetOrder(order.ID)
		return err == nil && updated != nil && updated.FinalPrice != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	env.pool.Wait()
}

func TestEnqueueFullQueue(t *testing.T) {
	env := newWorkerEnv(t)

	// Workers not started; fill the buffer
	var accepted int
	for i := 0; i < 300; i++ {
		if env.pool.Enqueue(uint(i)) {
			accepted++
		}
	}

	assert.Equal(t, 256, accepted)
}
