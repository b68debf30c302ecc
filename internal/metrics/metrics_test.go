package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		GrokRequestsTotal,
		GrokRetriesTotal,
		CircuitBreakerState,
		SentimentResultsTotal,
		SentimentFallbacksTotal,
		SentimentLengthMismatchTotal,
		StreamEventsSkippedTotal,
		SingleflightSharedTotal,
		CacheRequestsTotal,
		CacheEvictionsTotal,
		CacheSize,
	}

	for _, c := range collectors {
		require.NotNil(t, c)
	}
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(SentimentResultsTotal.WithLabelValues("lexicon"))
	SentimentResultsTotal.WithLabelValues("lexicon").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(SentimentResultsTotal.WithLabelValues("lexicon")))

	before = testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("memory", "hit"))
	CacheRequestsTotal.WithLabelValues("memory", "hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("memory", "hit")))
}

func TestGaugeSet(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test").Set(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")))

	CacheSize.Set(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(CacheSize))
}
