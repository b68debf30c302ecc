package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Remote model metrics
var (
	// GrokRequestsTotal counts retried remote calls by mode (complete/stream) and outcome
	GrokRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grok_requests_total",
			Help: "Total Grok requests by mode and status",
		},
		[]string{"mode", "status"},
	)

	// GrokRetriesTotal counts backoff retries across all remote calls
	GrokRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grok_retries_total",
			Help: "Total Grok request retries",
		},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Sentiment pipeline metrics
var (
	// SentimentResultsTotal counts resolved items by source (remote, lexicon)
	SentimentResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_results_total",
			Help: "Total sentiment results by source",
		},
		[]string{"source"},
	)

	// SentimentFallbacksTotal counts whole-batch fallbacks to the lexicon by path and reason
	SentimentFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_fallbacks_total",
			Help: "Total batches resolved entirely by the lexicon scorer",
		},
		[]string{"path", "reason"},
	)

	// SentimentLengthMismatchTotal counts remote arrays whose length differed from the request
	SentimentLengthMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_length_mismatch_total",
			Help: "Total remote responses with a result count different from the item count",
		},
	)

	// StreamEventsSkippedTotal counts malformed server-sent events that were ignored
	StreamEventsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_stream_events_skipped_total",
			Help: "Total malformed stream events skipped",
		},
	)

	// SingleflightSharedTotal counts callers that joined an in-flight identical request
	SingleflightSharedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_singleflight_shared_total",
			Help: "Total analyze calls that shared an in-flight request",
		},
	)
)

// Cache metrics
var (
	// CacheRequestsTotal counts cache lookups by backend and result (hit, miss)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_cache_requests_total",
			Help: "Total sentiment cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_cache_evictions_total",
			Help: "Total sentiment cache evictions by reason (capacity, ttl)",
		},
		[]string{"reason"},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentiment_cache_size",
			Help: "Current number of entries in the in-memory sentiment cache",
		},
	)
)
