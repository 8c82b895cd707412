package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDispatcher swaps the real sleep for a recorder so backoff timing
// can be asserted without slowing the suite down
func newTestDispatcher(url string, maxRetries int) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(url, time.Second, maxRetries)
	sleeps := &[]time.Duration{}
	d.sleep = func(dur time.Duration) {
		*sleeps = append(*sleeps, dur)
	}
	return d, sleeps
}

func TestDeliverFirstAttempt(t *testing.T) {
	var attempts int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, sleeps := newTestDispatcher(sink.URL, 3)

	delivered := d.Deliver(context.Background(), Event{OrderID: 1, FinalPrice: 210, Status: "quoted"})

	assert.True(t, delivered)
	assert.Equal(t, int32(1), attempts)
	assert.Empty(t, *sleeps)
}

func TestDeliverSucceedsOnThirdAttempt(t *testing.T) {
	var attempts int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, sleeps := newTestDispatcher(sink.URL, 3)

	delivered := d.Deliver(context.Background(), Event{OrderID: 1, FinalPrice: 210, Status: "quoted"})

	assert.True(t, delivered)
	assert.Equal(t, int32(3), attempts)
	// Backoff doubles: 1s after the first failure, 2s after the second
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDeliverExhausted(t *testing.T) {
	var attempts int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer sink.Close()

	d, sleeps := newTestDispatcher(sink.URL, 3)

	delivered := d.Deliver(context.Background(), Event{OrderID: 7, FinalPrice: 99, Status: "booked"})

	assert.False(t, delivered)
	assert.Equal(t, int32(3), attempts, "exactly maxRetries attempts")
	// No sleep after the final attempt
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDeliverUnreachableSink(t *testing.T) {
	d, _ := newTestDispatcher("http://127.0.0.1:1/webhook", 2)

	delivered := d.Deliver(context.Background(), Event{OrderID: 1, Status: "quoted"})
	assert.False(t, delivered)
}

func TestDeliverPayloadShape(t *testing.T) {
	var received map[string]interface{}
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, _ := newTestDispatcher(sink.URL, 1)

	oldPrice := 180.0
	require.True(t, d.Deliver(context.Background(), Event{
		OrderID:    42,
		FinalPrice: 210,
		Status:     "quoted",
		OldPrice:   &oldPrice,
	}))

	assert.Equal(t, float64(42), received["order_id"])
	assert.Equal(t, 210.0, received["final_price"])
	assert.Equal(t, "quoted", received["status"])
	assert.Equal(t, 180.0, received["old_price"])
}

func TestDeliverOmitsOldPriceWhenUnset(t *testing.T) {
	var received map[string]interface{}
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, _ := newTestDispatcher(sink.URL, 1)

	require.True(t, d.Deliver(context.Background(), Event{OrderID: 1, FinalPrice: 50, Status: "booked"}))
	assert.NotContains(t, received, "old_price")
}
