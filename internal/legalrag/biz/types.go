package biz

import "time"

// Intent 查询意图。
type Intent string

const (
	IntentDefinition Intent = "definition"
	IntentProcedure  Intent = "procedure"
	IntentTemporal   Intent = "temporal"
	IntentGeneral    Intent = "general"
)

// Provenance 检索结果来源。
type Provenance string

const (
	ProvenanceVector  Provenance = "vector"
	ProvenanceKeyword Provenance = "keyword"
	ProvenanceHybrid  Provenance = "hybrid"
)

// Query 检索请求。
type Query struct {
	Text               string   `json:"text"`
	DocumentIDs        []string `json:"document_ids,omitempty"`
	ExcludeDocumentIDs []string `json:"exclude_document_ids,omitempty"`
	ChunkTypes         []string `json:"chunk_types,omitempty"`
	// Threshold 覆盖默认向量相似度阈值。
	Threshold *float64 `json:"threshold,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	// ExpansionTerms 只参与关键词检索，不改变向量查询文本。
	ExpansionTerms []string `json:"expansion_terms,omitempty"`
}

// Entities 从查询中抽取的法律实体。
type Entities struct {
	Parties       []string `json:"parties"`
	Jurisdictions []string `json:"jurisdictions"`
	Dates         []string `json:"dates"`
	Documents     []string `json:"documents"`
	Periods       []string `json:"periods"`
}

// Count 返回实体总数。
func (e Entities) Count() int {
	return len(e.Parties) + len(e.Jurisdictions) + len(e.Dates) + len(e.Documents) + len(e.Periods)
}

// QueryAnalysis 查询分析结果。
type QueryAnalysis struct {
	Intent              Intent   `json:"intent"`
	Concepts            []string `json:"concepts"`
	Entities            Entities `json:"entities"`
	Confidence          float64  `json:"confidence"`
	SuggestedChunkTypes []string `json:"suggested_chunk_types"`
}

// SearchResult 单条检索结果。分数为 nil 表示该路径未命中。
type SearchResult struct {
	ChunkID       string     `json:"chunk_id"`
	DocumentID    string     `json:"document_id"`
	DocumentTitle string     `json:"document_title"`
	ChunkType     string     `json:"chunk_type"`
	PageNumber    int        `json:"page_number"`
	Content       string     `json:"content"`
	Concepts      []string   `json:"concepts,omitempty"`
	VectorScore   *float64   `json:"vector_score"`
	KeywordScore  *float64   `json:"keyword_score"`
	CombinedScore float64    `json:"combined_score"`
	RerankScore   float64    `json:"rerank_score,omitempty"`
	Provenance    Provenance `json:"provenance"`
}

// RankedResultSet 按融合分数降序排列的检索结果。
type RankedResultSet struct {
	Query           string         `json:"query"`
	Results         []SearchResult `json:"results"`
	TotalCandidates int            `json:"total_candidates"`
	Latency         time.Duration  `json:"latency"`
	// Degraded 表示某一路检索失败，结果只来自另一路。
	Degraded   bool   `json:"degraded,omitempty"`
	FailedPath string `json:"failed_path,omitempty"`
}

// SearchStrategy 优化器给出的检索策略。
type SearchStrategy struct {
	Approach      string   `json:"approach"`
	VectorWeight  float64  `json:"vector_weight"`
	KeywordWeight float64  `json:"keyword_weight"`
	Filters       []string `json:"filters"`
	BoostConcepts []string `json:"boost_concepts"`
}

// QueryScores 查询质量评分，均在 [0,1] 内。
type QueryScores struct {
	Complexity  float64 `json:"complexity"`
	Clarity     float64 `json:"clarity"`
	Specificity float64 `json:"specificity"`
	Overall     float64 `json:"overall"`
}

// OptimizedQuery 查询优化结果。Original 始终保留原始查询。
type OptimizedQuery struct {
	Original        string         `json:"original"`
	Optimized       string         `json:"optimized"`
	Mode            OptimizeMode   `json:"mode"`
	ExpansionTerms  []string       `json:"expansion_terms"`
	Rationale       string         `json:"rationale"`
	Suggestions     []string       `json:"suggestions"`
	Scores          QueryScores    `json:"scores"`
	Strategy        SearchStrategy `json:"strategy"`
	Recommendations []string       `json:"recommendations"`
	Analysis        *QueryAnalysis `json:"analysis"`
}

// PerformancePrediction 基于检索结果的效果预测。
type PerformancePrediction struct {
	Score        float64 `json:"score"`
	Label        string  `json:"label"`
	ResultCount  int     `json:"result_count"`
	AverageScore float64 `json:"average_score"`
}

// QueryPerformance 查询性能分析结果。
type QueryPerformance struct {
	Query       string                 `json:"query"`
	Scores      QueryScores            `json:"scores"`
	Issues      []string               `json:"issues"`
	Suggestions []string               `json:"suggestions"`
	Prediction  *PerformancePrediction `json:"prediction,omitempty"`
}

// Source 答案引用的证据块。Index 对应提示词中的 [SOURCE n]。
type Source struct {
	Index     int          `json:"index"`
	Result    SearchResult `json:"result"`
	Relevance float64      `json:"relevance"`
}

// LegalAnalysis 对证据块的法律分析。
type LegalAnalysis struct {
	KeyConcepts     []string `json:"key_concepts"`
	Jurisdictions   []string `json:"jurisdictions"`
	RiskFactors     []string `json:"risk_factors"`
	ComplianceNotes []string `json:"compliance_notes"`
	AmbiguousTerms  []string `json:"ambiguous_terms"`
}

// PatternMatch 证据中识别出的法律模式句。
type PatternMatch struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	ChunkID  string `json:"chunk_id"`
}

// ContextMeta 描述答案上下文的构成。
type ContextMeta struct {
	ChunksUsed      int `json:"chunks_used"`
	ChunksAvailable int `json:"chunks_available"`
	DocumentsUsed   int `json:"documents_used"`
	ContextChars    int `json:"context_chars"`
}

// Relationship 跨文档引用关系。
type Relationship string

const (
	RelationshipPrecedent      Relationship = "precedent"
	RelationshipDefinitionLink Relationship = "definition-link"
	RelationshipObligationLink Relationship = "obligation-link"
	RelationshipOther          Relationship = "other"
)

// CrossReference 指向另一文档中相关内容的引用。
type CrossReference struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Relationship Relationship `json:"relationship"`
	Relevance    float64      `json:"relevance"`
	DocumentID   string       `json:"document_id"`
	ChunkID      string       `json:"chunk_id"`
}

// RAGAnswer 问答结果。
type RAGAnswer struct {
	Question        string           `json:"question"`
	Answer          string           `json:"answer"`
	Confidence      float64          `json:"confidence"`
	ConfidenceLevel string           `json:"confidence_level"`
	QuestionType    string           `json:"question_type"`
	Sources         []Source         `json:"sources"`
	LegalAnalysis   *LegalAnalysis   `json:"legal_analysis"`
	Patterns        []PatternMatch   `json:"patterns,omitempty"`
	CrossReferences []CrossReference `json:"cross_references,omitempty"`
	Recommendations []string         `json:"recommendations"`
	ContextMeta     ContextMeta      `json:"context_meta"`
	Degraded        bool             `json:"degraded,omitempty"`
	// Error 记录生成失败原因，此时 Confidence 为 0。
	Error string `json:"error,omitempty"`
}

// AskRequest 问答请求。
type AskRequest struct {
	Question               string   `json:"question"`
	DocumentIDs            []string `json:"document_ids,omitempty"`
	MaxResults             int      `json:"max_results,omitempty"`
	IncludeCrossReferences bool     `json:"include_cross_references,omitempty"`
	// Optimize 为 true 时先做查询扩展，扩展词只参与关键词检索。
	Optimize bool `json:"optimize,omitempty"`
}

// CompareMode 文档比较模式。
type CompareMode string

const (
	CompareSimilarity CompareMode = "similarity"
	CompareDifference CompareMode = "difference"
	CompareCoverage   CompareMode = "coverage"
)

// SimilarityPair 两个文档的相似度。
type SimilarityPair struct {
	DocumentA   string   `json:"document_a"`
	DocumentB   string   `json:"document_b"`
	Similarity  float64  `json:"similarity"`
	SharedTerms []string `json:"shared_terms"`
}

// DocumentDifference 单个文档的独有词项。
type DocumentDifference struct {
	DocumentID  string   `json:"document_id"`
	UniqueTerms []string `json:"unique_terms"`
	Uniqueness  float64  `json:"uniqueness"`
}

// CoverageMatrix 文档 × 法律概念的归一化权重矩阵，每行列集合相同。
type CoverageMatrix struct {
	Concepts []string                      `json:"concepts"`
	Rows     map[string]map[string]float64 `json:"rows"`
}

// ComparisonResult 比较结果，按 Mode 只填充一个结果字段。
type ComparisonResult struct {
	Mode         CompareMode          `json:"mode"`
	DocumentIDs  []string             `json:"document_ids"`
	Similarities []SimilarityPair     `json:"similarities"`
	Differences  []DocumentDifference `json:"differences"`
	Coverage     *CoverageMatrix      `json:"coverage"`
}

// ItemStatus 批量任务中单项的状态。
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemSucceeded  ItemStatus = "succeeded"
	ItemFailed     ItemStatus = "failed"
	ItemTimedOut   ItemStatus = "timed_out"
)

// BatchSettings 批量问答参数，零值使用服务默认值。
type BatchSettings struct {
	MaxParallelism         int           `json:"max_parallelism"`
	ItemTimeout            time.Duration `json:"item_timeout"`
	Deadline               time.Duration `json:"deadline"`
	IncludeCrossReferences bool          `json:"include_cross_references"`
	DocumentIDs            []string      `json:"document_ids,omitempty"`
}

// BatchItemResult 单个问题的结果。
type BatchItemResult struct {
	Index    int           `json:"index"`
	Question string        `json:"question"`
	Status   ItemStatus    `json:"status"`
	Answer   *RAGAnswer    `json:"answer,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Theme 在多个答案中出现的法律概念。
type Theme struct {
	Concept string `json:"concept"`
	Count   int    `json:"count"`
}

// BatchSummary 批量任务汇总。
type BatchSummary struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	TimedOut     int           `json:"timed_out"`
	SuccessRate  float64       `json:"success_rate"`
	WallTime     time.Duration `json:"wall_time"`
	CommonThemes []Theme       `json:"common_themes"`
}

// BatchJob 批量问答任务。Items 与输入问题一一对应，顺序一致。
type BatchJob struct {
	ID          string            `json:"id"`
	Settings    BatchSettings     `json:"settings"`
	Items       []BatchItemResult `json:"items"`
	Summary     BatchSummary      `json:"summary"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Suggestion 查询建议。
type Suggestion struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}
