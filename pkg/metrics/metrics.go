package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts reads served from the keyed expiring store
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	}, []string{"cache"})

	// CacheMisses counts reads that fell through to a fresh computation
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	}, []string{"cache"})

	// RateLimitExceeded counts denied requests per principal
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total rate limit exceeded events",
	}, []string{"user_id"})

	// WebhookDeliveries counts delivery outcomes
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total webhook delivery attempts",
	}, []string{"status"})

	// AuditEntries counts audit rows written per action
	AuditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_logs_created_total",
		Help: "Total audit logs created",
	}, []string{"action"})
)
