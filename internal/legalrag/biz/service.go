package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// TracerName 业务层 tracer 名称。
const TracerName = "github.com/kart-io/legal-rag/internal/legalrag/biz"

// Service 定义法律检索服务接口。
type Service interface {
	// Search 执行混合检索，结果按融合分数降序。
	Search(ctx context.Context, q Query) (*RankedResultSet, error)
	// Ask 检索、重排并生成带引用的答案。
	Ask(ctx context.Context, req AskRequest) (*RAGAnswer, error)
	// OptimizeQuery 改写查询并给出评分和检索策略。
	OptimizeQuery(ctx context.Context, text, queryContext string, mode OptimizeMode) (*OptimizedQuery, error)
	// AnalyzeQueryPerformance 评估查询质量并预测检索效果。
	AnalyzeQueryPerformance(ctx context.Context, text string) (*QueryPerformance, error)
	// CompareDocuments 比较多个文档。
	CompareDocuments(ctx context.Context, documentIDs []string, mode CompareMode) (*ComparisonResult, error)
	// BatchAsk 并发回答一组问题，结果顺序与输入一致。
	BatchAsk(ctx context.Context, questions []string, settings BatchSettings) (*BatchJob, error)
	// Suggest 根据部分输入给出查询建议。
	Suggest(ctx context.Context, partial string) ([]Suggestion, error)
}

var _ Service = (*LegalRAGService)(nil)

// ServiceConfig 服务配置，nil 字段使用各组件默认值。
type ServiceConfig struct {
	Retriever     *RetrieverConfig
	Rerank        *RerankConfig
	Synthesizer   *SynthesizerConfig
	Comparator    *ComparatorConfig
	Batch         *BatchConfig
	Optimizer     *OptimizerConfig
	CrossRefLimit int
}

// LegalRAGService 组合各组件提供完整的法律检索服务。
type LegalRAGService struct {
	analyzer    *Analyzer
	optimizer   *Optimizer
	retriever   *Retriever
	reranker    *Reranker
	synthesizer *Synthesizer
	crossref    *CrossRefEngine
	comparator  *Comparator
	batch       *BatchOrchestrator
	suggester   *Suggester
	cache       ResultCache
	telemetry   TelemetrySink
	tracer      trace.Tracer
}

// NewLegalRAGService 创建服务实例。cache 与 telemetry 可为 nil。
func NewLegalRAGService(
	index store.Index,
	embedder llm.EmbeddingProvider,
	chat llm.ChatProvider,
	cache ResultCache,
	telemetry TelemetrySink,
	config *ServiceConfig,
) *LegalRAGService {
	if config == nil {
		config = &ServiceConfig{}
	}
	if cache == nil {
		cache = NopResultCache{}
	}
	if telemetry == nil {
		telemetry = NopSink{}
	}

	analyzer := NewAnalyzer()
	retriever := NewRetriever(index, embedder, config.Retriever)
	s := &LegalRAGService{
		analyzer:    analyzer,
		optimizer:   NewOptimizer(analyzer, config.Optimizer),
		retriever:   retriever,
		reranker:    NewReranker(config.Rerank),
		synthesizer: NewSynthesizer(chat, config.Synthesizer),
		crossref:    NewCrossRefEngine(retriever, config.CrossRefLimit),
		comparator:  NewComparator(index, config.Comparator),
		suggester:   NewSuggester(),
		cache:       cache,
		telemetry:   telemetry,
		tracer:      otel.Tracer(TracerName),
	}
	s.batch = NewBatchOrchestrator(s.askForBatch, config.Batch)
	return s
}

// Search 实现 Service。
func (s *LegalRAGService) Search(ctx context.Context, q Query) (*RankedResultSet, error) {
	ctx, span := s.tracer.Start(ctx, "LegalRAG.Search")
	defer span.End()
	start := time.Now()

	set, hit, err := s.search(ctx, q)
	rec := TelemetryRecord{Operation: "search", Query: q.Text, Latency: time.Since(start), CacheHit: hit}
	if err != nil {
		rec.Err = err.Error()
		recordAsync(s.telemetry, rec)
		return nil, spanError(span, err)
	}
	rec.ResultCount, rec.AvgScore, rec.Degraded = len(set.Results), averageScore(set.Results), set.Degraded
	recordAsync(s.telemetry, rec)

	span.SetAttributes(
		attribute.Int("legalrag.results", len(set.Results)),
		attribute.Bool("legalrag.cache_hit", hit),
		attribute.Bool("legalrag.degraded", set.Degraded),
	)
	return set, nil
}

// search 带缓存的检索。降级结果不写入缓存。
func (s *LegalRAGService) search(ctx context.Context, q Query) (*RankedResultSet, bool, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, false, errors.ErrEmptyQuery
	}
	if q.Threshold != nil && (*q.Threshold < 0 || *q.Threshold > 1) {
		return nil, false, errors.ErrValidation.WithMessage("threshold must be within [0,1]")
	}
	if q.Limit < 0 {
		return nil, false, errors.ErrValidation.WithMessage("limit must not be negative")
	}

	key := CacheKey(q)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return cached, true, nil
	}

	set, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if !set.Degraded {
		s.cache.Put(ctx, key, set)
	}
	return set, false, nil
}

// Ask 实现 Service。交叉引用失败只记录日志，不影响答案。
func (s *LegalRAGService) Ask(ctx context.Context, req AskRequest) (*RAGAnswer, error) {
	ctx, span := s.tracer.Start(ctx, "LegalRAG.Ask")
	defer span.End()
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, spanError(span, errors.ErrEmptyQuery)
	}
	if req.MaxResults < 0 {
		return nil, spanError(span, errors.ErrValidation.WithMessage("max_results must not be negative"))
	}

	// 1. 查询分析与可选扩展
	analysis := s.analyzer.Analyze(question)
	q := Query{Text: question, DocumentIDs: req.DocumentIDs, Limit: req.MaxResults}
	if req.Optimize {
		if opt, err := s.optimizer.Optimize(question, "", ""); err == nil {
			q.ExpansionTerms = opt.ExpansionTerms
		}
	}

	// 2. 检索
	set, hit, err := s.search(ctx, q)
	if err != nil {
		recordAsync(s.telemetry, TelemetryRecord{Operation: "ask", Query: question, Latency: time.Since(start), Err: err.Error()})
		return nil, spanError(span, err)
	}

	// 3. 重排与答案合成
	ranked := s.reranker.Rerank(set.Results, analysis)
	answer := s.synthesizer.Synthesize(ctx, question, ranked, analysis)
	answer.Degraded = set.Degraded

	// 4. 交叉引用
	if req.IncludeCrossReferences && len(answer.Sources) > 0 {
		refs, err := s.crossref.Find(ctx, answer.LegalAnalysis.KeyConcepts, sourceDocuments(answer.Sources), req.DocumentIDs)
		if err != nil {
			logger.Warnw("cross-reference lookup failed", "error", err.Error())
		} else {
			answer.CrossReferences = refs
		}
	}

	recordAsync(s.telemetry, TelemetryRecord{
		Operation:   "ask",
		Query:       question,
		ResultCount: len(answer.Sources),
		AvgScore:    averageScore(set.Results),
		Confidence:  answer.Confidence,
		Latency:     time.Since(start),
		CacheHit:    hit,
		Degraded:    set.Degraded,
		Err:         answer.Error,
	})
	span.SetAttributes(
		attribute.Int("legalrag.sources", len(answer.Sources)),
		attribute.Float64("legalrag.confidence", answer.Confidence),
		attribute.String("legalrag.intent", string(analysis.Intent)),
	)
	return answer, nil
}

// OptimizeQuery 实现 Service。
func (s *LegalRAGService) OptimizeQuery(ctx context.Context, text, queryContext string, mode OptimizeMode) (*OptimizedQuery, error) {
	_, span := s.tracer.Start(ctx, "LegalRAG.OptimizeQuery")
	defer span.End()

	opt, err := s.optimizer.Optimize(text, queryContext, mode)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("legalrag.mode", string(opt.Mode)))
	return opt, nil
}

// AnalyzeQueryPerformance 实现 Service。检索失败时省略预测部分。
func (s *LegalRAGService) AnalyzeQueryPerformance(ctx context.Context, text string) (*QueryPerformance, error) {
	ctx, span := s.tracer.Start(ctx, "LegalRAG.AnalyzeQueryPerformance")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, spanError(span, errors.ErrEmptyQuery)
	}

	analysis := s.analyzer.Analyze(text)
	scores := s.optimizer.Score(text, analysis)
	perf := &QueryPerformance{
		Query:       text,
		Scores:      scores,
		Issues:      Issues(text, scores),
		Suggestions: suggestionsFor(scores),
	}

	set, _, err := s.search(ctx, Query{Text: text})
	if err != nil {
		logger.Warnw("performance prediction skipped", "error", err.Error())
		return perf, nil
	}
	perf.Prediction = PredictPerformance(set.Results)
	return perf, nil
}

// CompareDocuments 实现 Service。
func (s *LegalRAGService) CompareDocuments(ctx context.Context, documentIDs []string, mode CompareMode) (*ComparisonResult, error) {
	ctx, span := s.tracer.Start(ctx, "LegalRAG.CompareDocuments")
	defer span.End()
	start := time.Now()

	res, err := s.comparator.Compare(ctx, documentIDs, mode)
	rec := TelemetryRecord{Operation: "compare", Latency: time.Since(start)}
	if err != nil {
		rec.Err = err.Error()
		recordAsync(s.telemetry, rec)
		return nil, spanError(span, err)
	}
	rec.ResultCount = len(res.DocumentIDs)
	recordAsync(s.telemetry, rec)
	return res, nil
}

// BatchAsk 实现 Service。
func (s *LegalRAGService) BatchAsk(ctx context.Context, questions []string, settings BatchSettings) (*BatchJob, error) {
	ctx, span := s.tracer.Start(ctx, "LegalRAG.BatchAsk")
	defer span.End()

	job, err := s.batch.Run(ctx, questions, settings)
	if err != nil {
		return nil, spanError(span, err)
	}
	recordAsync(s.telemetry, TelemetryRecord{
		Operation:   "batch",
		ResultCount: job.Summary.Succeeded,
		Latency:     job.Summary.WallTime,
	})
	span.SetAttributes(
		attribute.String("legalrag.job_id", job.ID),
		attribute.Float64("legalrag.success_rate", job.Summary.SuccessRate),
	)
	return job, nil
}

// Suggest 实现 Service。
func (s *LegalRAGService) Suggest(_ context.Context, partial string) ([]Suggestion, error) {
	if strings.TrimSpace(partial) == "" {
		return nil, errors.ErrEmptyQuery
	}
	return s.suggester.Suggest(partial), nil
}

func (s *LegalRAGService) askForBatch(ctx context.Context, question string, settings BatchSettings) (*RAGAnswer, error) {
	return s.Ask(ctx, AskRequest{
		Question:               question,
		DocumentIDs:            settings.DocumentIDs,
		IncludeCrossReferences: settings.IncludeCrossReferences,
	})
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
