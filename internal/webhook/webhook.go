package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/pkg/metrics"
)

// Event is the JSON payload delivered to the configured sink on a
// notifiable order transition
type Event struct {
	OrderID    uint     `json:"order_id"`
	FinalPrice float64  `json:"final_price"`
	Status     string   `json:"status"`
	OldPrice   *float64 `json:"old_price,omitempty"`
}

// Dispatcher delivers events to a single configured HTTP sink with bounded
// retries and exponential backoff. Delivery is best-effort: exhaustion is
// logged and reported as a bool, never as an error, because the triggering
// operation has already completed.
type Dispatcher struct {
	url        string
	timeout    time.Duration
	maxRetries int
	client     *http.Client

	// sleep is swappable in tests
	sleep func(time.Duration)
}

// NewDispatcher creates a dispatcher posting to url with the given
// per-attempt timeout and attempt budget
func NewDispatcher(url string, timeout time.Duration, maxRetries int) *Dispatcher {
	return &Dispatcher{
		url:        url,
		timeout:    timeout,
		maxRetries: maxRetries,
		client:     &http.Client{},
		sleep:      time.Sleep,
	}
}

// Deliver posts the event as JSON, retrying up to the attempt budget. The
// backoff starts at one second and doubles after each failed attempt; there
// is no sleep after the final attempt. Any 2xx response counts as delivered.
func (d *Dispatcher) Deliver(ctx context.Context, event Event) bool {
	logger := log.With().
		Str("component", "webhook").
		Uint("order_id", event.OrderID).
		Logger()

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode webhook payload")
		return false
	}

	backoff := time.Second

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if d.attempt(ctx, payload) {
			logger.Info().Int("attempt", attempt).Msg("webhook delivered")
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return true
		}

		logger.Warn().
			Int("attempt", attempt).
			Int("max_retries", d.maxRetries).
			Msg("webhook delivery failed")

		if attempt < d.maxRetries {
			d.sleep(backoff)
			backoff *= 2
		}
	}

	logger.Error().Int("max_retries", d.maxRetries).Msg("webhook delivery exhausted")
	metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
	return false
}

func (d *Dispatcher) attempt(ctx context.Context, payload []byte) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
