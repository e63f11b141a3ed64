// Package metrics exposes the Prometheus collectors of the frontend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RecommendationRequests
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // backend answered success=false or non-2xx
	OutcomeError    = "error"    // transport, decode or timeout
	OutcomeOpen     = "breaker_open"
)

var (
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodflix_recommendation_requests_total",
			Help: "Recommendation requests sent to the backend, by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodflix_recommendation_duration_seconds",
			Help:    "Round trip time of recommendation requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodflix_backend_breaker_state",
			Help: "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodflix_active_sessions",
			Help: "Browser sessions currently held in memory",
		},
	)

	PosterRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodflix_poster_requests_total",
			Help: "Poster proxy requests, by status",
		},
		[]string{"status"},
	)
)
