// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mentor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// SubmitsTotal counts settled submits by outcome (replied, failed, canceled).
	SubmitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentor",
			Subsystem: "chat",
			Name:      "submits_total",
			Help:      "Total settled submits by outcome",
		},
		[]string{"outcome"},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mentor",
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Gateway failures by kind",
		},
		[]string{"kind"},
	)

	GatewayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mentor",
			Subsystem: "gateway",
			Name:      "duration_seconds",
			Help:      "Time spent waiting for a reply",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	PersistenceFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mentor",
			Subsystem: "store",
			Name:      "append_failures_total",
			Help:      "Messages that could not be mirrored to the store",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mentor",
			Subsystem: "http",
			Name:      "active_sessions",
			Help:      "Chat sessions held by the server",
		},
	)
)
