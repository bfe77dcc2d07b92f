package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across every route.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "siemcore",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

var EventsAcceptedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "intake",
		Name:      "events_accepted_total",
		Help:      "Total number of events accepted and persisted, by tenant.",
	},
	[]string{"tenant"},
)

var EventsQuarantinedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "intake",
		Name:      "events_quarantined_total",
		Help:      "Total number of events quarantined, by reason.",
	},
	[]string{"reason"},
)

var LowCoverageNormalizeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "intake",
		Name:      "low_coverage_normalize_total",
		Help:      "Total number of normalized events whose field coverage fell below the warning threshold, by source_type.",
	},
	[]string{"source_type"},
)

var RateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "intake",
		Name:      "rate_limited_total",
		Help:      "Total number of requests shed by tenant rate limiting.",
	},
	[]string{"tenant"},
)

var IdempotencyReplayedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "idempotency",
		Name:      "replayed_total",
		Help:      "Total number of idempotency replay responses served.",
	},
)

var IdempotencyConflictTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "idempotency",
		Name:      "conflict_total",
		Help:      "Total number of idempotency key conflicts (409s).",
	},
)

var RuleRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "evaluator",
		Name:      "runs_total",
		Help:      "Total number of rule evaluation runs, by outcome.",
	},
	[]string{"outcome"},
)

var AlertsInsertedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "evaluator",
		Name:      "alerts_inserted_total",
		Help:      "Total number of alerts inserted by rule evaluation.",
	},
	[]string{"rule_id"},
)

var RuleRunDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "siemcore",
		Subsystem: "evaluator",
		Name:      "run_duration_seconds",
		Help:      "Rule evaluation run duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"rule_id"},
)

var LockBlockedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "siemcore",
		Subsystem: "scheduler",
		Name:      "lock_blocked_total",
		Help:      "Total number of evaluations skipped because the single-flight lock was held.",
	},
)

var DegradedModeGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "siemcore",
		Subsystem: "coord",
		Name:      "degraded_mode",
		Help:      "1 when the coordination store is unreachable and process-local fallbacks are active.",
	},
)

var CircuitBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "siemcore",
		Subsystem: "store",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per upstream: 0=closed, 1=half-open, 2=open.",
	},
	[]string{"upstream"},
)

// All returns every siemcore-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		EventsAcceptedTotal,
		EventsQuarantinedTotal,
		LowCoverageNormalizeTotal,
		RateLimitedTotal,
		IdempotencyReplayedTotal,
		IdempotencyConflictTotal,
		RuleRunsTotal,
		AlertsInsertedTotal,
		RuleRunDuration,
		LockBlockedTotal,
		DegradedModeGauge,
		CircuitBreakerState,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, the shared HTTP duration metric, and the siemcore collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
