package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, biz.TelemetryRecord{Operation: "search", Latency: 10 * time.Millisecond, CacheHit: true}))
	require.NoError(t, m.Record(ctx, biz.TelemetryRecord{Operation: "search", Latency: 30 * time.Millisecond, Degraded: true}))
	require.NoError(t, m.Record(ctx, biz.TelemetryRecord{Operation: "ask", Confidence: 0.7, Latency: 20 * time.Millisecond}))
	require.NoError(t, m.Record(ctx, biz.TelemetryRecord{Operation: "compare", Err: "boom"}))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operationsTotal.WithLabelValues("search", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operationsTotal.WithLabelValues("compare", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.degradedTotal.WithLabelValues("search")))

	stats := m.Stats()
	assert.Equal(t, uint64(4), stats["queries_total"])
	assert.Equal(t, uint64(1), stats["errors_total"])
	assert.Equal(t, uint64(1), stats["cache_hits"])
	assert.InDelta(t, 0.25, stats["cache_hit_rate"], 1e-9)
	assert.InDelta(t, 15.0, stats["avg_latency_ms"], 1e-6)
}

func TestMetrics_ResilienceObserver(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRetry("embedding:local")
	m.RecordRetry("index:postgres")
	m.RecordRetry("index:postgres")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retriesTotal.WithLabelValues("embedding:local")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.retriesTotal.WithLabelValues("index:postgres")))
	assert.Equal(t, uint64(3), m.Stats()["retries_total"])

	m.RecordCircuitBreakerState("chat", "open")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.circuitBreakerState.WithLabelValues("chat")))
	m.RecordCircuitBreakerState("chat", "half-open")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.circuitBreakerState.WithLabelValues("chat")))
	m.RecordCircuitBreakerState("chat", "unknown")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.circuitBreakerState.WithLabelValues("chat")))
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveHTTP("POST", "/v1/legal/search", 200, 5*time.Millisecond)
	m.ObserveHTTP("POST", "/v1/legal/search", 400, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/v1/legal/search", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/v1/legal/search", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
}
