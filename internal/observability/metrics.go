package observability

import "github.com/prometheus/client_golang/prometheus"

const namespace = "inventory"

// Metrics holds every collector the service exports. Collectors are created
// once and shared; handlers and services must not create their own.
type Metrics struct {
	Operations        *prometheus.CounterVec   // {operation,outcome}
	OperationDuration *prometheus.HistogramVec // {operation}
	CallAttempts      *prometheus.CounterVec   // {call,outcome}
	Fallbacks         *prometheus.CounterVec   // {call,reason}
	BreakerState      *prometheus.GaugeVec     // {call}; 0 closed, 1 half-open, 2 open
	LockWait          *prometheus.HistogramVec // {coordinator}
	HTTPRequests      *prometheus.CounterVec   // {method,route,status}
	HTTPDuration      *prometheus.HistogramVec // {method,route}
}

// NewMetrics builds the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Stock operations by outcome.",
		}, []string{"operation", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of stock operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CallAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guarded_call_attempts_total",
			Help:      "Attempts made against guarded external dependencies.",
		}, []string{"call", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guarded_call_fallbacks_total",
			Help:      "Fallback invocations of guarded external dependencies.",
		}, []string{"call", "reason"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"call"}),
		LockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for a per-key stock lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"coordinator"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Operations,
			m.OperationDuration,
			m.CallAttempts,
			m.Fallbacks,
			m.BreakerState,
			m.LockWait,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}
