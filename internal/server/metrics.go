// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// messageRequestsTotal counts completed /api/message requests, partitioned
	// by outcome: "ok", "timeout", or "error".
	messageRequestsTotal *prometheus.CounterVec

	// messageDurationSeconds records the wall-clock duration of each
	// /api/message request, covering the full agent workflow.
	messageDurationSeconds *prometheus.HistogramVec

	// classificationsTotal counts router labels observed in completed
	// workflows.
	classificationsTotal *prometheus.CounterVec

	// moderationActionsTotal counts moderation verdicts observed in
	// completed workflows ("flag", "warn", "allow").
	moderationActionsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default,
// keeping unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		messageRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "message",
			Name:      "requests_total",
			Help:      "Total number of /api/message requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		messageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchd",
			Subsystem: "message",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/message requests across the full agent workflow.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		classificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "message",
			Name:      "classifications_total",
			Help:      "Total number of router classifications observed, partitioned by label.",
		}, []string{"label"}),

		moderationActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "message",
			Name:      "moderation_actions_total",
			Help:      "Total number of moderation verdicts observed, partitioned by action.",
		}, []string{"action"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchd",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
