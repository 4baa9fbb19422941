package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/infra/pool"
)

// TelemetryRecord 一次查询操作的遥测记录。
type TelemetryRecord struct {
	Operation   string
	Query       string
	ResultCount int
	AvgScore    float64
	Confidence  float64
	Latency     time.Duration
	CacheHit    bool
	Degraded    bool
	Err         string
	At          time.Time
}

// TelemetrySink 接收遥测记录。记录失败不得影响调用方。
type TelemetrySink interface {
	Record(ctx context.Context, rec TelemetryRecord) error
}

// LogSink 把遥测记录写入结构化日志。
type LogSink struct{}

func (LogSink) Record(_ context.Context, rec TelemetryRecord) error {
	logger.Infow("query telemetry",
		"operation", rec.Operation,
		"query_length", len(rec.Query),
		"results", rec.ResultCount,
		"avg_score", rec.AvgScore,
		"confidence", rec.Confidence,
		"latency", rec.Latency.String(),
		"cache_hit", rec.CacheHit,
		"degraded", rec.Degraded,
		"error", rec.Err,
	)
	return nil
}

// MultiSink 依次写入多个 sink，返回第一个错误但不中断后续 sink。
type MultiSink []TelemetrySink

func (m MultiSink) Record(ctx context.Context, rec TelemetryRecord) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopSink 丢弃所有记录。
type NopSink struct{}

func (NopSink) Record(context.Context, TelemetryRecord) error { return nil }

// recordAsync 在后台池中写入遥测，错误只记录日志。
func recordAsync(sink TelemetrySink, rec TelemetryRecord) {
	if sink == nil {
		return
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	pool.Go(func() {
		if err := sink.Record(context.Background(), rec); err != nil {
			logger.Debugw("telemetry record dropped", "operation", rec.Operation, "error", err.Error())
		}
	})
}

func averageScore(results []SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.CombinedScore
	}
	return sum / float64(len(results))
}
