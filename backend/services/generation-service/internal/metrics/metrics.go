// Package metrics holds the Prometheus collectors of the generation service.
// They are exported on /metrics by the HTTP router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hub
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscribers",
			Help: "Current number of hub subscriptions",
		},
	)

	HubEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Events accepted into the hub buffer",
		},
	)

	HubEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_events_dropped_total",
			Help: "Events dropped because nobody was subscribed",
		},
	)

	HubLaggedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_lagged_events_total",
			Help: "Events skipped by subscribers that fell behind the ring buffer",
		},
	)

	// WebSocket sessions
	WSSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_sessions_active",
			Help: "Current number of live dashboard sessions",
		},
	)

	WSSessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_sessions_closed_total",
			Help: "Closed sessions by reason",
		},
		[]string{"reason"}, // "client_closed", "heartbeat_timeout", "hub_closed", "write_failed", "shutdown"
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_sent_total",
			Help: "Messages written to dashboard clients",
		},
		[]string{"type"},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_messages_dropped_total",
			Help: "Outgoing messages dropped because the session send buffer was full",
		},
	)

	// Producer
	ProducerSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_samples_total",
			Help: "Samples produced per outcome",
		},
		[]string{"result"}, // "stored", "store_failed", "invalid_capacity"
	)

	ProducerCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "producer_cycle_duration_seconds",
			Help:    "Duration of one sampling cycle over all plants",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	LatestCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latest_cache_misses_total",
			Help: "Portfolio snapshots that fell back to Postgres for latest readings",
		},
	)

	// Reconciliation
	ReconcileRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_requests_total",
			Help: "Reconciliation requests by view and outcome",
		},
		[]string{"view", "result"}, // view: "day", "range"; result: "ok", "invalid", "error"
	)

	APIRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Requests rejected by the API rate limiter",
		},
	)
)
