// Package rag provides tuning options for the legal retrieval engine.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/legal-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains the engine's scoring weights and limits.
type Options struct {
	Retrieval *RetrievalOptions `json:"retrieval" mapstructure:"retrieval"`
	Rerank    *RerankOptions    `json:"rerank" mapstructure:"rerank"`
	Synthesis *SynthesisOptions `json:"synthesis" mapstructure:"synthesis"`
	Compare   *CompareOptions   `json:"compare" mapstructure:"compare"`
	Batch     *BatchOptions     `json:"batch" mapstructure:"batch"`
	Optimizer *OptimizerOptions `json:"optimizer" mapstructure:"optimizer"`
	CrossRef  *CrossRefOptions  `json:"cross-ref" mapstructure:"cross-ref"`
}

// RetrievalOptions configures the hybrid retriever.
type RetrievalOptions struct {
	VectorWeight    float64 `json:"vector-weight" mapstructure:"vector-weight"`
	KeywordWeight   float64 `json:"keyword-weight" mapstructure:"keyword-weight"`
	VectorThreshold float64 `json:"vector-threshold" mapstructure:"vector-threshold"`
	DefaultLimit    int     `json:"default-limit" mapstructure:"default-limit"`
	MaxLimit        int     `json:"max-limit" mapstructure:"max-limit"`
}

// RerankOptions configures the reranker boosts.
type RerankOptions struct {
	IntentBoost     float64 `json:"intent-boost" mapstructure:"intent-boost"`
	ConceptBoost    float64 `json:"concept-boost" mapstructure:"concept-boost"`
	ConceptBoostCap float64 `json:"concept-boost-cap" mapstructure:"concept-boost-cap"`
	TotalBoostCap   float64 `json:"total-boost-cap" mapstructure:"total-boost-cap"`
}

// SynthesisOptions configures context selection and confidence.
type SynthesisOptions struct {
	MaxContextChunks     int     `json:"max-context-chunks" mapstructure:"max-context-chunks"`
	MaxChunksPerDocument int     `json:"max-chunks-per-document" mapstructure:"max-chunks-per-document"`
	ContextCharBudget    int     `json:"context-char-budget" mapstructure:"context-char-budget"`
	SimilarityWeight     float64 `json:"similarity-weight" mapstructure:"similarity-weight"`
	AgreementWeight      float64 `json:"agreement-weight" mapstructure:"agreement-weight"`
	CompletenessWeight   float64 `json:"completeness-weight" mapstructure:"completeness-weight"`
	MinRelevance         float64 `json:"min-relevance" mapstructure:"min-relevance"`
	SystemPrompt         string  `json:"system-prompt" mapstructure:"system-prompt"`
}

// CompareOptions configures the document comparator.
type CompareOptions struct {
	SimilarityCutoff float64 `json:"similarity-cutoff" mapstructure:"similarity-cutoff"`
	MinTermFrequency int     `json:"min-term-frequency" mapstructure:"min-term-frequency"`
	SharedTermsLimit int     `json:"shared-terms-limit" mapstructure:"shared-terms-limit"`
	UniqueTermsLimit int     `json:"unique-terms-limit" mapstructure:"unique-terms-limit"`
}

// BatchOptions configures the batch orchestrator defaults.
type BatchOptions struct {
	MaxParallelism int           `json:"max-parallelism" mapstructure:"max-parallelism"`
	ItemTimeout    time.Duration `json:"item-timeout" mapstructure:"item-timeout"`
	Deadline       time.Duration `json:"deadline" mapstructure:"deadline"`
	MaxQuestions   int           `json:"max-questions" mapstructure:"max-questions"`
}

// OptimizerOptions configures the query optimizer score blend.
type OptimizerOptions struct {
	ComplexityWeight  float64 `json:"complexity-weight" mapstructure:"complexity-weight"`
	ClarityWeight     float64 `json:"clarity-weight" mapstructure:"clarity-weight"`
	SpecificityWeight float64 `json:"specificity-weight" mapstructure:"specificity-weight"`
	DefaultMode       string  `json:"default-mode" mapstructure:"default-mode"`
}

// CrossRefOptions configures the cross-reference engine.
type CrossRefOptions struct {
	Limit int `json:"limit" mapstructure:"limit"`
}

// NewOptions returns the engine defaults.
func NewOptions() *Options {
	return &Options{
		Retrieval: &RetrievalOptions{
			VectorWeight:    0.7,
			KeywordWeight:   0.3,
			VectorThreshold: 0.7,
			DefaultLimit:    10,
			MaxLimit:        100,
		},
		Rerank: &RerankOptions{
			IntentBoost:     0.1,
			ConceptBoost:    0.05,
			ConceptBoostCap: 0.15,
			TotalBoostCap:   0.3,
		},
		Synthesis: &SynthesisOptions{
			MaxContextChunks:     5,
			MaxChunksPerDocument: 2,
			ContextCharBudget:    4000,
			SimilarityWeight:     1.0 / 3,
			AgreementWeight:      1.0 / 3,
			CompletenessWeight:   1.0 / 3,
			MinRelevance:         0.1,
		},
		Compare: &CompareOptions{
			SimilarityCutoff: 0.3,
			MinTermFrequency: 2,
			SharedTermsLimit: 10,
			UniqueTermsLimit: 20,
		},
		Batch: &BatchOptions{
			MaxParallelism: 3,
			ItemTimeout:    30 * time.Second,
			Deadline:       5 * time.Minute,
			MaxQuestions:   50,
		},
		Optimizer: &OptimizerOptions{
			ComplexityWeight:  1,
			ClarityWeight:     1,
			SpecificityWeight: 1,
			DefaultMode:       "legal",
		},
		CrossRef: &CrossRefOptions{Limit: 5},
	}
}

// AddFlags adds flags for engine options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."

	fs.Float64Var(&o.Retrieval.VectorWeight, p+"retrieval.vector-weight", o.Retrieval.VectorWeight, "Weight of the vector score in the combined score.")
	fs.Float64Var(&o.Retrieval.KeywordWeight, p+"retrieval.keyword-weight", o.Retrieval.KeywordWeight, "Weight of the keyword score in the combined score.")
	fs.Float64Var(&o.Retrieval.VectorThreshold, p+"retrieval.vector-threshold", o.Retrieval.VectorThreshold, "Minimum vector similarity.")
	fs.IntVar(&o.Retrieval.DefaultLimit, p+"retrieval.default-limit", o.Retrieval.DefaultLimit, "Results returned when a query sets no limit.")
	fs.IntVar(&o.Retrieval.MaxLimit, p+"retrieval.max-limit", o.Retrieval.MaxLimit, "Upper bound on a query's limit.")

	fs.Float64Var(&o.Rerank.IntentBoost, p+"rerank.intent-boost", o.Rerank.IntentBoost, "Boost when chunk type matches the query intent.")
	fs.Float64Var(&o.Rerank.ConceptBoost, p+"rerank.concept-boost", o.Rerank.ConceptBoost, "Boost per shared legal concept.")
	fs.Float64Var(&o.Rerank.ConceptBoostCap, p+"rerank.concept-boost-cap", o.Rerank.ConceptBoostCap, "Cap on the concept boost.")
	fs.Float64Var(&o.Rerank.TotalBoostCap, p+"rerank.total-boost-cap", o.Rerank.TotalBoostCap, "Cap on the total boost.")

	fs.IntVar(&o.Synthesis.MaxContextChunks, p+"synthesis.max-context-chunks", o.Synthesis.MaxContextChunks, "Chunks placed in the answer context.")
	fs.IntVar(&o.Synthesis.MaxChunksPerDocument, p+"synthesis.max-chunks-per-document", o.Synthesis.MaxChunksPerDocument, "Per-document cap in the answer context.")
	fs.IntVar(&o.Synthesis.ContextCharBudget, p+"synthesis.context-char-budget", o.Synthesis.ContextCharBudget, "Character budget of the answer context.")
	fs.Float64Var(&o.Synthesis.SimilarityWeight, p+"synthesis.similarity-weight", o.Synthesis.SimilarityWeight, "Confidence weight of average similarity.")
	fs.Float64Var(&o.Synthesis.AgreementWeight, p+"synthesis.agreement-weight", o.Synthesis.AgreementWeight, "Confidence weight of cross-document agreement.")
	fs.Float64Var(&o.Synthesis.CompletenessWeight, p+"synthesis.completeness-weight", o.Synthesis.CompletenessWeight, "Confidence weight of context completeness.")
	fs.Float64Var(&o.Synthesis.MinRelevance, p+"synthesis.min-relevance", o.Synthesis.MinRelevance, "Minimum combined score of a chunk used as evidence.")
	fs.StringVar(&o.Synthesis.SystemPrompt, p+"synthesis.system-prompt", o.Synthesis.SystemPrompt, "Override the answer system prompt.")

	fs.Float64Var(&o.Compare.SimilarityCutoff, p+"compare.similarity-cutoff", o.Compare.SimilarityCutoff, "Minimum Jaccard similarity reported.")
	fs.IntVar(&o.Compare.MinTermFrequency, p+"compare.min-term-frequency", o.Compare.MinTermFrequency, "Occurrences needed for a significant term.")
	fs.IntVar(&o.Compare.SharedTermsLimit, p+"compare.shared-terms-limit", o.Compare.SharedTermsLimit, "Shared terms reported per pair.")
	fs.IntVar(&o.Compare.UniqueTermsLimit, p+"compare.unique-terms-limit", o.Compare.UniqueTermsLimit, "Unique terms reported per document.")

	fs.IntVar(&o.Batch.MaxParallelism, p+"batch.max-parallelism", o.Batch.MaxParallelism, "Default batch worker count.")
	fs.DurationVar(&o.Batch.ItemTimeout, p+"batch.item-timeout", o.Batch.ItemTimeout, "Default per-question timeout.")
	fs.DurationVar(&o.Batch.Deadline, p+"batch.deadline", o.Batch.Deadline, "Default batch deadline. Zero disables it.")
	fs.IntVar(&o.Batch.MaxQuestions, p+"batch.max-questions", o.Batch.MaxQuestions, "Maximum questions per batch.")

	fs.Float64Var(&o.Optimizer.ComplexityWeight, p+"optimizer.complexity-weight", o.Optimizer.ComplexityWeight, "Weight of complexity in the overall score.")
	fs.Float64Var(&o.Optimizer.ClarityWeight, p+"optimizer.clarity-weight", o.Optimizer.ClarityWeight, "Weight of clarity in the overall score.")
	fs.Float64Var(&o.Optimizer.SpecificityWeight, p+"optimizer.specificity-weight", o.Optimizer.SpecificityWeight, "Weight of specificity in the overall score.")
	fs.StringVar(&o.Optimizer.DefaultMode, p+"optimizer.default-mode", o.Optimizer.DefaultMode, "Default optimization mode.")

	fs.IntVar(&o.CrossRef.Limit, p+"cross-ref.limit", o.CrossRef.Limit, "Maximum cross-references per answer.")
}

// Validate validates the engine options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	r := o.Retrieval
	if r.VectorWeight < 0 || r.KeywordWeight < 0 || r.VectorWeight+r.KeywordWeight == 0 {
		errs = append(errs, fmt.Errorf("rag.retrieval weights must be non-negative and not both zero"))
	}
	if r.VectorThreshold < 0 || r.VectorThreshold > 1 {
		errs = append(errs, fmt.Errorf("rag.retrieval.vector-threshold must be within [0,1]"))
	}
	if r.DefaultLimit <= 0 || r.MaxLimit < r.DefaultLimit {
		errs = append(errs, fmt.Errorf("rag.retrieval limits must satisfy 0 < default-limit <= max-limit"))
	}
	if o.Rerank.TotalBoostCap < 0 || o.Rerank.ConceptBoostCap < 0 {
		errs = append(errs, fmt.Errorf("rag.rerank caps must be non-negative"))
	}
	s := o.Synthesis
	if s.MaxContextChunks <= 0 || s.MaxChunksPerDocument <= 0 || s.ContextCharBudget <= 0 {
		errs = append(errs, fmt.Errorf("rag.synthesis limits must be positive"))
	}
	if s.SimilarityWeight < 0 || s.AgreementWeight < 0 || s.CompletenessWeight < 0 ||
		s.SimilarityWeight+s.AgreementWeight+s.CompletenessWeight == 0 {
		errs = append(errs, fmt.Errorf("rag.synthesis confidence weights must be non-negative and not all zero"))
	}
	if s.MinRelevance < 0 || s.MinRelevance > 1 {
		errs = append(errs, fmt.Errorf("rag.synthesis.min-relevance must be within [0,1]"))
	}
	if o.Compare.SimilarityCutoff < 0 || o.Compare.SimilarityCutoff > 1 {
		errs = append(errs, fmt.Errorf("rag.compare.similarity-cutoff must be within [0,1]"))
	}
	if o.Batch.MaxParallelism <= 0 || o.Batch.ItemTimeout <= 0 || o.Batch.MaxQuestions <= 0 {
		errs = append(errs, fmt.Errorf("rag.batch settings must be positive"))
	}
	if o.Batch.Deadline < 0 {
		errs = append(errs, fmt.Errorf("rag.batch.deadline must not be negative"))
	}
	op := o.Optimizer
	if op.ComplexityWeight < 0 || op.ClarityWeight < 0 || op.SpecificityWeight < 0 ||
		op.ComplexityWeight+op.ClarityWeight+op.SpecificityWeight == 0 {
		errs = append(errs, fmt.Errorf("rag.optimizer weights must be non-negative and not all zero"))
	}
	if o.CrossRef.Limit < 0 {
		errs = append(errs, fmt.Errorf("rag.cross-ref.limit must not be negative"))
	}
	return errs
}

// Complete completes the engine options with defaults.
func (o *Options) Complete() error {
	def := NewOptions()
	if o.Retrieval == nil {
		o.Retrieval = def.Retrieval
	}
	if o.Rerank == nil {
		o.Rerank = def.Rerank
	}
	if o.Synthesis == nil {
		o.Synthesis = def.Synthesis
	}
	if o.Compare == nil {
		o.Compare = def.Compare
	}
	if o.Batch == nil {
		o.Batch = def.Batch
	}
	if o.Optimizer == nil {
		o.Optimizer = def.Optimizer
	}
	if o.CrossRef == nil {
		o.CrossRef = def.CrossRef
	}
	return nil
}
