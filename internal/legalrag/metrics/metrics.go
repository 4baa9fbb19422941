// Package metrics 提供法律检索服务的 Prometheus 指标。
package metrics

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/pkg/llm/resilience"
	"github.com/kart-io/legal-rag/pkg/middleware"
)

const namespace = "legal_rag"

var (
	_ biz.TelemetrySink       = (*Metrics)(nil)
	_ resilience.Observer     = (*Metrics)(nil)
	_ middleware.HTTPObserver = (*Metrics)(nil)
)

// 熔断器状态对应的 gauge 值。
var breakerStateValue = map[string]float64{
	"closed":    0,
	"open":      1,
	"half-open": 2,
}

// Metrics 服务指标，同时实现遥测接收、上游弹性观察和 HTTP 观察接口。
type Metrics struct {
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	degradedTotal       *prometheus.CounterVec
	answerConfidence    prometheus.Histogram
	retriesTotal        *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec

	// /stats 快照计数
	queries     atomic.Uint64
	errors      atomic.Uint64
	cacheHits   atomic.Uint64
	degraded    atomic.Uint64
	retries     atomic.Uint64
	latencyNano atomic.Int64
	startTime   time.Time
}

// New 在 reg 上注册全部指标。
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of query operations by outcome.",
		}, []string{"operation", "status"}),
		operationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Query operation latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Search result cache lookups by result.",
		}, []string{"result"}),
		degradedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Operations served with a degraded retrieval path.",
		}, []string{"operation"}),
		answerConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_confidence",
			Help:      "Confidence of synthesized answers.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		retriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retried calls to model providers and indexes.",
		}, []string{"upstream"}),
		circuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Upstream circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		startTime: time.Now(),
	}
}

// Record 实现 biz.TelemetrySink。
func (m *Metrics) Record(_ context.Context, rec biz.TelemetryRecord) error {
	status := "success"
	if rec.Err != "" {
		status = "error"
		m.errors.Add(1)
	}
	m.queries.Add(1)
	m.latencyNano.Add(int64(rec.Latency))

	m.operationsTotal.WithLabelValues(rec.Operation, status).Inc()
	m.operationDuration.WithLabelValues(rec.Operation).Observe(rec.Latency.Seconds())

	if rec.Operation == "search" || rec.Operation == "ask" {
		result := "miss"
		if rec.CacheHit {
			result = "hit"
			m.cacheHits.Add(1)
		}
		m.cacheLookups.WithLabelValues(result).Inc()
	}
	if rec.Degraded {
		m.degraded.Add(1)
		m.degradedTotal.WithLabelValues(rec.Operation).Inc()
	}
	if rec.Operation == "ask" && rec.Err == "" {
		m.answerConfidence.Observe(rec.Confidence)
	}
	return nil
}

// RecordRetry 实现 resilience.Observer。
func (m *Metrics) RecordRetry(name string) {
	m.retries.Add(1)
	m.retriesTotal.WithLabelValues(name).Inc()
}

// RecordCircuitBreakerState 实现 resilience.Observer。
func (m *Metrics) RecordCircuitBreakerState(name, state string) {
	if v, ok := breakerStateValue[state]; ok {
		m.circuitBreakerState.WithLabelValues(name).Set(v)
	}
}

// ObserveHTTP 实现 middleware.HTTPObserver。
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Stats 返回 /stats 接口使用的计数快照。
func (m *Metrics) Stats() map[string]any {
	queries := m.queries.Load()
	hits := m.cacheHits.Load()

	var avgLatencyMs, hitRate float64
	if queries > 0 {
		avgLatencyMs = float64(m.latencyNano.Load()) / float64(queries) / float64(time.Millisecond)
		hitRate = float64(hits) / float64(queries)
	}

	return map[string]any{
		"queries_total":  queries,
		"errors_total":   m.errors.Load(),
		"cache_hits":     hits,
		"cache_hit_rate": hitRate,
		"degraded_total": m.degraded.Load(),
		"retries_total":  m.retries.Load(),
		"avg_latency_ms": avgLatencyMs,
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
