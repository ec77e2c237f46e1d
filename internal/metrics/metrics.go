// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExternalRequests counts calls to the external map-data API by outcome:
	// success, failure or rejected (circuit open).
	ExternalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_external_requests_total",
			Help: "Total number of external place source requests",
		},
		[]string{"source", "outcome"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_external_request_duration_seconds",
			Help:    "Latency of external place source requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		},
		[]string{"source"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discovery_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	AggregatedPlaces = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_aggregated_places",
			Help:    "Number of places returned per source for an aggregation",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_recommend_duration_seconds",
			Help:    "Time spent scoring and ranking a place collection",
			Buckets: prometheus.DefBuckets,
		},
	)
)
