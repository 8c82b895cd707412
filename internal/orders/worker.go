package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autohaul/autohaul-api/internal/pricing"
	"github.com/autohaul/autohaul-api/internal/webhook"
)

// repriceDistanceKm stands in for a routing lookup the brokerage does not
// have yet; repricing uses a fixed distance until one exists.
const repriceDistanceKm = 100.0

// WorkerPool runs reprice tasks off the request path. A task that fails is
// retried in place with 2^attempt-seconds backoff, a separate envelope from
// the dispatcher's own delivery retries. Webhook exhaustion is not a task
// failure: the reprice itself has already been persisted.
type WorkerPool struct {
	service    *Service
	engine     *pricing.Engine
	dispatcher *webhook.Dispatcher

	tasks      chan uint
	maxRetries int
	workers    int
	wg         sync.WaitGroup

	// sleep is swappable in tests
	sleep func(time.Duration)
}

// NewWorkerPool creates a reprice pool with the given concurrency
func NewWorkerPool(service *Service, engine *pricing.Engine, dispatcher *webhook.Dispatcher, workers int) *WorkerPool {
	return &WorkerPool{
		service:    service,
		engine:     engine,
		dispatcher: dispatcher,
		tasks:      make(chan uint, 256),
		maxRetries: 3,
		workers:    workers,
		sleep:      time.Sleep,
	}
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until in-flight tasks have finished.
func (p *WorkerPool) Start(ctx context.Context) {
	logger := log.With().Str("component", "reprice_worker").Logger()
	logger.Info().Int("workers", p.workers).Msg("starting reprice workers")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case orderID := <-p.tasks:
					p.process(ctx, orderID)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Enqueue schedules a reprice for the order. Returns false when the queue
// is full; the caller decides how to report that.
func (p *WorkerPool) Enqueue(orderID uint) bool {
	select {
	case p.tasks <- orderID:
		return true
	default:
		log.Error().Str("component", "reprice_worker").Uint("order_id", orderID).Msg("reprice queue full, dropping task")
		return false
	}
}

// process runs one task through its retry envelope
func (p *WorkerPool) process(ctx context.Context, orderID uint) {
	logger := log.With().Str("component", "reprice_worker").Uint("order_id", orderID).Logger()

	for attempt := 0; ; attempt++ {
		err := p.repriceOrder(ctx, orderID)
		if err == nil {
			return
		}

		if attempt >= p.maxRetries {
			logger.Error().Err(err).Int("attempts", attempt+1).Msg("reprice task failed permanently")
			return
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		logger.Warn().Err(err).Dur("backoff", backoff).Msg("reprice task failed, retrying")
		p.sleep(backoff)
	}
}

// repriceOrder recomputes an order's price and notifies the sink when the
// price actually changed
func (p *WorkerPool) repriceOrder(ctx context.Context, orderID uint) error {
	order, err := p.service.GetOrder(orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		// Deleted since enqueue; nothing to do
		return nil
	}

	req := pricing.Request{
		BasePrice:   order.BasePrice,
		DistanceKm:  repriceDistanceKm,
		VehicleType: "sedan",
		SeasonBonus: 0,
		Operable:    true,
	}
	if lead, err := p.service.GetLead(order.LeadID); err == nil && lead != nil {
		req.VehicleType = lead.VehicleType
		req.Operable = lead.Operable
	}

	quote := p.engine.Compute(req)

	oldPrice := order.FinalPrice
	newPrice := quote.FinalPrice
	order.FinalPrice = &newPrice

	if err := p.service.UpdateOrder(order); err != nil {
		return fmt.Errorf("persist reprice: %w", err)
	}

	if oldPrice == nil || *oldPrice != newPrice {
		p.dispatcher.Deliver(ctx, webhook.Event{
			OrderID:    order.ID,
			FinalPrice: newPrice,
			OldPrice:   oldPrice,
			Status:     order.Status,
		})
	}
	return nil
}
