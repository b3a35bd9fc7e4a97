package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch and speech outcome label values.
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeUnsuccessful = "unsuccessful"
	OutcomeError        = "error"
	OutcomeCanceled     = "canceled"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatarchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Conversation metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatarchat_active_sessions",
			Help: "Chat sessions currently alive",
		},
	)

	MessagesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_messages_submitted_total",
			Help: "Total user messages submitted",
		},
		[]string{"source"}, // "typed" or "spoken"
	)

	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_dispatches_total",
			Help: "Total backend requests by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avatarchat_dispatch_duration_seconds",
			Help:    "Backend request latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SpeechCaptures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_speech_captures_total",
			Help: "Total recording sessions by outcome",
		},
		[]string{"outcome"},
	)
)
