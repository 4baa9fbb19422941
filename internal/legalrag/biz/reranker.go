package biz

import (
	"sort"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

// RerankConfig 重排序加权配置。
type RerankConfig struct {
	IntentBoost     float64
	ConceptBoost    float64
	ConceptBoostCap float64
	TotalBoostCap   float64
}

// DefaultRerankConfig 返回默认配置。
func DefaultRerankConfig() *RerankConfig {
	return &RerankConfig{
		IntentBoost:     0.1,
		ConceptBoost:    0.05,
		ConceptBoostCap: 0.15,
		TotalBoostCap:   0.3,
	}
}

// Reranker 按意图与概念重叠对结果加权重排。相同输入总是得到相同顺序。
type Reranker struct {
	config *RerankConfig
}

// NewReranker 创建重排序器。
func NewReranker(config *RerankConfig) *Reranker {
	if config == nil {
		config = DefaultRerankConfig()
	}
	return &Reranker{config: config}
}

// Rerank 返回重排后的副本，不修改入参。analysis 为 nil 时只按融合分数排序。
func (r *Reranker) Rerank(results []SearchResult, analysis *QueryAnalysis) []SearchResult {
	out := make([]SearchResult, len(results))
	copy(out, results)

	for i := range out {
		out[i].RerankScore = out[i].CombinedScore + r.boost(&out[i], analysis)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func (r *Reranker) boost(res *SearchResult, analysis *QueryAnalysis) float64 {
	if analysis == nil {
		return 0
	}

	var intent float64
	for _, t := range analysis.SuggestedChunkTypes {
		if strings.EqualFold(t, res.ChunkType) {
			intent = r.config.IntentBoost
			break
		}
	}

	shared := 0
	for _, c := range analysis.Concepts {
		if textutil.ContainsString(res.Concepts, c) {
			shared++
		}
	}
	concept := float64(shared) * r.config.ConceptBoost
	if concept > r.config.ConceptBoostCap {
		concept = r.config.ConceptBoostCap
	}

	total := intent + concept
	if total > r.config.TotalBoostCap {
		total = r.config.TotalBoostCap
	}
	return total
}
