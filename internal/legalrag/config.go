// Package legalrag wires the legal RAG server: backends, providers,
// the query service and the HTTP transport.
package legalrag

import (
	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	cacheopts "github.com/kart-io/legal-rag/pkg/options/cache"
	indexopts "github.com/kart-io/legal-rag/pkg/options/index"
	llmopts "github.com/kart-io/legal-rag/pkg/options/llm"
	logopts "github.com/kart-io/legal-rag/pkg/options/logger"
	ragopts "github.com/kart-io/legal-rag/pkg/options/rag"
	httpopts "github.com/kart-io/legal-rag/pkg/options/server/http"
	tracingopts "github.com/kart-io/legal-rag/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "legal-rag"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions    *httpopts.Options
	LogOptions     *logopts.Options
	TracingOptions *tracingopts.Options
	IndexOptions   *indexopts.Options
	CacheOptions   *cacheopts.Options
	LLMOptions     *llmopts.Options
	RAGOptions     *ragopts.Options
}

// ServiceConfig 把 rag 配置转换为业务层配置。
func ServiceConfig(o *ragopts.Options) (*biz.ServiceConfig, error) {
	mode, err := biz.ParseOptimizeMode(o.Optimizer.DefaultMode, biz.ModeLegal)
	if err != nil {
		return nil, err
	}

	return &biz.ServiceConfig{
		Retriever: &biz.RetrieverConfig{
			VectorWeight:    o.Retrieval.VectorWeight,
			KeywordWeight:   o.Retrieval.KeywordWeight,
			VectorThreshold: o.Retrieval.VectorThreshold,
			DefaultLimit:    o.Retrieval.DefaultLimit,
			MaxLimit:        o.Retrieval.MaxLimit,
			CandidateFactor: biz.DefaultRetrieverConfig().CandidateFactor,
		},
		Rerank: &biz.RerankConfig{
			IntentBoost:     o.Rerank.IntentBoost,
			ConceptBoost:    o.Rerank.ConceptBoost,
			ConceptBoostCap: o.Rerank.ConceptBoostCap,
			TotalBoostCap:   o.Rerank.TotalBoostCap,
		},
		Synthesizer: &biz.SynthesizerConfig{
			MaxContextChunks:     o.Synthesis.MaxContextChunks,
			MaxChunksPerDocument: o.Synthesis.MaxChunksPerDocument,
			ContextCharBudget:    o.Synthesis.ContextCharBudget,
			MinRelevance:         o.Synthesis.MinRelevance,
			SimilarityWeight:     o.Synthesis.SimilarityWeight,
			AgreementWeight:      o.Synthesis.AgreementWeight,
			CompletenessWeight:   o.Synthesis.CompletenessWeight,
			SystemPrompt:         o.Synthesis.SystemPrompt,
		},
		Comparator: &biz.ComparatorConfig{
			SimilarityCutoff: o.Compare.SimilarityCutoff,
			MinTermFrequency: o.Compare.MinTermFrequency,
			SharedTermsLimit: o.Compare.SharedTermsLimit,
			UniqueTermsLimit: o.Compare.UniqueTermsLimit,
		},
		Batch: &biz.BatchConfig{
			MaxParallelism: o.Batch.MaxParallelism,
			ItemTimeout:    o.Batch.ItemTimeout,
			Deadline:       o.Batch.Deadline,
			MaxQuestions:   o.Batch.MaxQuestions,
		},
		Optimizer: &biz.OptimizerConfig{
			ComplexityWeight:  o.Optimizer.ComplexityWeight,
			ClarityWeight:     o.Optimizer.ClarityWeight,
			SpecificityWeight: o.Optimizer.SpecificityWeight,
			VectorWeight:      o.Retrieval.VectorWeight,
			KeywordWeight:     o.Retrieval.KeywordWeight,
			DefaultMode:       mode,
		},
		CrossRefLimit: o.CrossRef.Limit,
	}, nil
}
