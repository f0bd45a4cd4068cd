package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chainwatch",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Watched source metrics ─────────────────────────────────────────────

var (
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "poll",
		Name:      "total",
		Help:      "Total number of ticks per watched source.",
	}, []string{"source", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainwatch",
		Subsystem: "poll",
		Name:      "duration_seconds",
		Help:      "Duration of fetch plus publish per source in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	PollLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chainwatch",
		Subsystem: "poll",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful tick per source.",
	}, []string{"source"})

	ListenerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "poll",
		Name:      "listener_errors_total",
		Help:      "Publish calls where at least one listener failed.",
	}, []string{"source"})
)

// ── Alert gating metrics ───────────────────────────────────────────────

var (
	AlertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "alerts",
		Name:      "raised_total",
		Help:      "Alerts that passed their gates and were handed to the presenter.",
	}, []string{"type"})

	AlertsGatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "alerts",
		Name:      "gated_total",
		Help:      "Conditions held back by a cooldown or trigger.",
	}, []string{"type"})

	MilestonesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "alerts",
		Name:      "milestones_total",
		Help:      "Milestones announced per signal key.",
	}, []string{"key"})
)

// ── Delivery metrics ───────────────────────────────────────────────────

var (
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainwatch",
		Subsystem: "delivery",
		Name:      "total",
		Help:      "Delivery attempts per platform and outcome.",
	}, []string{"platform", "outcome"})

	BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chainwatch",
		Subsystem: "delivery",
		Name:      "broadcast_duration_seconds",
		Help:      "Wall time of a whole broadcast including lock wait.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	})

	QuarantinedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chainwatch",
		Subsystem: "delivery",
		Name:      "quarantined_channels",
		Help:      "Channels currently excluded after a permanent failure.",
	})

	SubscribersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chainwatch",
		Subsystem: "delivery",
		Name:      "subscribers_active",
		Help:      "Dynamically subscribed channels per platform.",
	}, []string{"platform"})
)
