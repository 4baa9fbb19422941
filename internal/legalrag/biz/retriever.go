package biz

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// RetrieverConfig 混合检索配置。
type RetrieverConfig struct {
	// VectorWeight/KeywordWeight 融合权重，负值按 0 处理。
	VectorWeight  float64
	KeywordWeight float64
	// VectorThreshold 默认向量相似度阈值。
	VectorThreshold float64
	DefaultLimit    int
	MaxLimit        int
	// CandidateFactor 每路检索取 limit*CandidateFactor 个候选。
	CandidateFactor int
}

// DefaultRetrieverConfig 返回默认配置。
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		VectorWeight:    0.7,
		KeywordWeight:   0.3,
		VectorThreshold: 0.7,
		DefaultLimit:    10,
		MaxLimit:        100,
		CandidateFactor: 3,
	}
}

// Retriever 混合检索器：依次执行向量与关键词检索，按块 ID 去重后加权融合。
type Retriever struct {
	index    store.Index
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
}

// NewRetriever 创建混合检索器。embedder 与 index 通常已包装重试与熔断。
func NewRetriever(index store.Index, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		config:   config,
	}
}

type pathResult struct {
	cands []store.Candidate
	err   error
}

// Retrieve 执行混合检索。一路失败时返回另一路的降级结果，两路都失败返回 ErrRetrievalUnavailable。
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*RankedResultSet, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.ErrEmptyQuery
	}
	start := time.Now()

	limit := r.limit(q.Limit)
	fetch := limit * max(r.config.CandidateFactor, 1)
	threshold := r.config.VectorThreshold
	if q.Threshold != nil {
		threshold = textutil.Clamp01(*q.Threshold)
	}
	filter := store.Filter{
		DocumentIDs:        q.DocumentIDs,
		ChunkTypes:         q.ChunkTypes,
		ExcludeDocumentIDs: q.ExcludeDocumentIDs,
	}

	// 1. 向量检索
	var vr pathResult
	if vec, err := r.embedder.EmbedSingle(ctx, q.Text); err != nil {
		vr.err = err
	} else {
		vr.cands, vr.err = r.index.VectorQuery(ctx, vec, threshold, filter, fetch)
	}

	// 2. 关键词检索，扩展词只在这一路生效
	var kr pathResult
	text := q.Text
	if len(q.ExpansionTerms) > 0 {
		text += " " + strings.Join(q.ExpansionTerms, " ")
	}
	kr.cands, kr.err = r.index.KeywordQuery(ctx, text, filter, fetch)

	set := &RankedResultSet{Query: q.Text}
	switch {
	case vr.err != nil && kr.err != nil:
		logger.Errorw("hybrid retrieval failed", "vector_error", vr.err.Error(), "keyword_error", kr.err.Error())
		return nil, errors.ErrRetrievalUnavailable.WithCause(vr.err)
	case vr.err != nil:
		logger.Warnw("vector retrieval failed, using keyword results only", "error", vr.err.Error())
		set.Degraded, set.FailedPath = true, "vector"
	case kr.err != nil:
		logger.Warnw("keyword retrieval failed, using vector results only", "error", kr.err.Error())
		set.Degraded, set.FailedPath = true, "keyword"
	}

	// 3. 融合
	results := r.merge(vr.cands, kr.cands)
	set.TotalCandidates = len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	set.Results = results
	set.Latency = time.Since(start)

	logger.Debugw("hybrid retrieval done",
		"results", len(results),
		"candidates", set.TotalCandidates,
		"degraded", set.Degraded,
		"latency", set.Latency.String(),
	)
	return set, nil
}

// merge 按块 ID 去重并计算融合分数，融合分数为 0 的结果被丢弃。
func (r *Retriever) merge(vector, keyword []store.Candidate) []SearchResult {
	byID := make(map[string]*SearchResult, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	get := func(c *store.Chunk) *SearchResult {
		if res, ok := byID[c.ID]; ok {
			return res
		}
		res := newSearchResult(c)
		byID[c.ID] = res
		order = append(order, c.ID)
		return res
	}

	for _, c := range vector {
		score := textutil.Clamp01(c.Score)
		get(c.Chunk).VectorScore = &score
	}
	for _, c := range keyword {
		score := textutil.Clamp01(c.Score)
		get(c.Chunk).KeywordScore = &score
	}

	wv, wk := weights(r.config.VectorWeight, r.config.KeywordWeight)
	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		res := byID[id]
		var combined float64
		switch {
		case res.VectorScore != nil && res.KeywordScore != nil:
			res.Provenance = ProvenanceHybrid
			combined = wv*(*res.VectorScore) + wk*(*res.KeywordScore)
		case res.VectorScore != nil:
			res.Provenance = ProvenanceVector
			combined = wv * (*res.VectorScore)
		default:
			res.Provenance = ProvenanceKeyword
			combined = wk * (*res.KeywordScore)
		}
		res.CombinedScore = textutil.Clamp01(combined)
		if res.CombinedScore == 0 {
			continue
		}
		results = append(results, *res)
	}

	SortByCombined(results)
	return results
}

// SortByCombined 按融合分数降序、块 ID 升序排序。
func SortByCombined(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func (r *Retriever) limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = r.config.DefaultLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if r.config.MaxLimit > 0 && limit > r.config.MaxLimit {
		limit = r.config.MaxLimit
	}
	return limit
}

// weights 把权重截断为非负；两者都为 0 时退回默认 0.7/0.3。
func weights(v, k float64) (float64, float64) {
	if v < 0 {
		v = 0
	}
	if k < 0 {
		k = 0
	}
	if v+k == 0 {
		return 0.7, 0.3
	}
	return v, k
}

func newSearchResult(c *store.Chunk) *SearchResult {
	concepts := c.Concepts
	if len(concepts) == 0 {
		concepts = DetectConcepts(c.Content)
	}
	return &SearchResult{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		DocumentTitle: c.DocumentTitle,
		ChunkType:     c.ChunkType,
		PageNumber:    c.PageNumber,
		Content:       c.Content,
		Concepts:      append([]string(nil), concepts...),
	}
}
