// Package metrics exposes the Prometheus collectors shared by every service binary.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfair_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookfair_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfair_auth_operations_total",
		Help: "Auth operations by operation and result",
	}, []string{"operation", "result"})

	edgeDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfair_gateway_auth_decisions_total",
		Help: "Edge authentication decisions",
	}, []string{"decision"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfair_user_events_published_total",
		Help: "User lifecycle events handed to the event log, by event type and result",
	}, []string{"event_type", "result"})

	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfair_user_events_consumed_total",
		Help: "User lifecycle events processed by a consumer, by result",
	}, []string{"result"})

	consumeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookfair_user_events_retries_total",
		Help: "Retried user lifecycle event processing attempts",
	})

	dispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookfair_user_events_dispatch_queue_depth",
		Help: "Lifecycle events waiting in the background dispatcher",
	})
)

// Result labels shared by the event counters.
const (
	ResultOK           = "ok"
	ResultFailed       = "failed"
	ResultDropped      = "dropped"
	ResultUpserted     = "upserted"
	ResultDeadLettered = "dead_lettered"
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveAuth counts an auth operation (register, login, refresh, logout, reset) with its result.
func ObserveAuth(operation, result string) {
	authOperations.WithLabelValues(operation, result).Inc()
}

// ObserveEdgeDecision counts a gateway authentication decision (public, allowed, rejected, forbidden).
func ObserveEdgeDecision(decision string) {
	edgeDecisions.WithLabelValues(decision).Inc()
}

// ObservePublish counts a lifecycle event publish outcome.
func ObservePublish(eventType, result string) {
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// ObserveConsume counts a lifecycle event consume outcome.
func ObserveConsume(result string) {
	eventsConsumed.WithLabelValues(result).Inc()
}

// ObserveRetry counts one retried processing attempt.
func ObserveRetry() {
	consumeRetries.Inc()
}

// SetDispatchQueueDepth sets the dispatcher queue gauge.
func SetDispatchQueueDepth(n int) {
	if n < 0 {
		n = 0
	}
	dispatchQueueDepth.Set(float64(n))
}
