// Package metrics provides Prometheus metrics for the event-notification
// backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notifyhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notifyhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks current in-flight requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notifyhub",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

var (
	// ActiveStreamSessions tracks in-flight stream requests across all users
	ActiveStreamSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notifyhub",
			Subsystem: "stream",
			Name:      "active_sessions",
			Help:      "Number of stream requests currently in flight",
		},
	)

	// SignalsFired counts lifecycle signals by kind
	SignalsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notifyhub",
			Subsystem: "stream",
			Name:      "signals_fired_total",
			Help:      "Total lifecycle signals fired, by signal kind",
		},
		[]string{"signal"},
	)

	// NotifierWaitDuration measures how long stream requests waited on the notifier
	NotifierWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notifyhub",
			Subsystem: "stream",
			Name:      "notifier_wait_seconds",
			Help:      "Time spent waiting on the notifier for new events",
			Buckets:   []float64{.005, .05, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// StreamEventsReturned measures events returned per stream request
	StreamEventsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notifyhub",
			Subsystem: "stream",
			Name:      "events_returned",
			Help:      "Number of events returned per stream request",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

var (
	// ArchivedEventsTotal counts events offloaded to object storage
	ArchivedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notifyhub",
			Subsystem: "archive",
			Name:      "events_total",
			Help:      "Total number of events archived to object storage",
		},
	)

	// ArchiveRunErrors counts failed archive runs
	ArchiveRunErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "notifyhub",
			Subsystem: "archive",
			Name:      "run_errors_total",
			Help:      "Total number of archive runs that ended in an error",
		},
	)
)
