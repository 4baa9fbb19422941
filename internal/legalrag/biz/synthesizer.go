package biz

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// InsufficientEvidenceAnswer 没有可用证据时的固定答案。
const InsufficientEvidenceAnswer = "There is insufficient evidence in the available documents to answer this question."

const defaultSystemPrompt = `You are a legal research assistant. Answer strictly from the numbered sources.
Cite every statement with its source marker such as [SOURCE 1].
If the sources do not answer the question, say so. Do not give legal advice.`

// 按问题类型追加的回答指引。
var questionTypeInstructions = map[string]string{
	"definition":  "Quote the defining language and state where it appears.",
	"obligation":  "List each obligation, the party bound by it and any condition attached.",
	"rights":      "List each right, the party holding it and any limitation on it.",
	"procedure":   "Describe the steps in order, including notice and timing requirements.",
	"comparison":  "Compare the sources point by point and name the differences.",
	"consequence": "Explain the consequences and remedies the sources provide.",
	"general":     "Answer concisely.",
}

var sentenceSplit = regexp.MustCompile(`[.;!?]\s+`)

const maxPatterns = 20

// SynthesizerConfig 答案合成配置。
type SynthesizerConfig struct {
	MaxContextChunks     int
	MaxChunksPerDocument int
	ContextCharBudget    int
	// MinRelevance 低于该融合分数的块不作为证据。
	MinRelevance       float64
	SimilarityWeight   float64
	AgreementWeight    float64
	CompletenessWeight float64
	SystemPrompt       string
}

// DefaultSynthesizerConfig 返回默认配置。
func DefaultSynthesizerConfig() *SynthesizerConfig {
	return &SynthesizerConfig{
		MaxContextChunks:     5,
		MaxChunksPerDocument: 2,
		ContextCharBudget:    4000,
		MinRelevance:         0.1,
		SimilarityWeight:     1.0 / 3,
		AgreementWeight:      1.0 / 3,
		CompletenessWeight:   1.0 / 3,
	}
}

// Synthesizer 选择上下文、调用 LLM 生成答案并评估置信度。
type Synthesizer struct {
	chat   llm.ChatProvider
	config *SynthesizerConfig
}

// NewSynthesizer 创建答案合成器。
func NewSynthesizer(chat llm.ChatProvider, config *SynthesizerConfig) *Synthesizer {
	if config == nil {
		config = DefaultSynthesizerConfig()
	}
	return &Synthesizer{chat: chat, config: config}
}

type selectedContext struct {
	sources []Source
	prompt  string
	chars   int
}

// Synthesize 基于排好序的结果生成答案。results 应已经过重排序。
// 没有相关证据时返回置信度为 0 的"证据不足"答案；LLM 失败时返回带错误说明的答案。
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []SearchResult, analysis *QueryAnalysis) *RAGAnswer {
	qType := ClassifyQuestionType(question)
	answer := &RAGAnswer{
		Question:        question,
		QuestionType:    qType,
		Sources:         []Source{},
		Recommendations: []string{},
	}

	// 1. 过滤相关证据
	var relevant []SearchResult
	for _, r := range results {
		if r.CombinedScore >= s.config.MinRelevance && r.CombinedScore > 0 {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) == 0 {
		answer.Answer = InsufficientEvidenceAnswer
		answer.ConfidenceLevel = ConfidenceLevel(0)
		answer.LegalAnalysis = s.analyze(nil, analysis)
		answer.Recommendations = recommendationsForAnalysis(answer.LegalAnalysis, 0)
		return answer
	}

	// 2. 选择上下文并构建提示词
	sel := s.selectContext(question, qType, relevant)
	answer.Sources = sel.sources
	answer.ContextMeta = ContextMeta{
		ChunksUsed:      len(sel.sources),
		ChunksAvailable: len(relevant),
		DocumentsUsed:   countDocuments(sel.sources),
		ContextChars:    sel.chars,
	}
	answer.Patterns = extractPatterns(sel.sources)
	answer.LegalAnalysis = s.analyze(sel.sources, analysis)
	answer.Recommendations = recommendationsForAnalysis(answer.LegalAnalysis, len(sel.sources))

	// 3. 调用 LLM
	systemPrompt := s.config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	text, err := s.chat.Generate(ctx, sel.prompt, systemPrompt)
	if err != nil {
		logger.Warnw("answer generation failed", "error", err.Error(), "sources", len(sel.sources))
		answer.Answer = "An answer could not be generated because the language model is unavailable. The cited sources may still be reviewed directly."
		answer.Error = errors.ErrSynthesis.WithCause(err).Error()
		answer.ConfidenceLevel = ConfidenceLevel(0)
		return answer
	}

	// 4. 置信度
	answer.Answer = strings.TrimSpace(text)
	answer.Confidence = s.confidence(sel.sources, len(relevant))
	answer.ConfidenceLevel = ConfidenceLevel(answer.Confidence)
	return answer
}

// selectContext 按顺序选取证据块，遵守块数、单文档块数和字符预算限制。
func (s *Synthesizer) selectContext(question, qType string, relevant []SearchResult) selectedContext {
	var (
		sel    selectedContext
		blocks strings.Builder
		perDoc = make(map[string]int)
	)
	for _, r := range relevant {
		if len(sel.sources) >= s.config.MaxContextChunks {
			break
		}
		if perDoc[r.DocumentID] >= s.config.MaxChunksPerDocument {
			continue
		}

		idx := len(sel.sources) + 1
		header := fmt.Sprintf("[SOURCE %d] %s (page %d, %s)\n", idx, r.DocumentTitle, r.PageNumber, r.ChunkType)
		content := r.Content
		remaining := s.config.ContextCharBudget - sel.chars - utf8.RuneCountInString(header)
		if utf8.RuneCountInString(content) > remaining {
			if len(sel.sources) > 0 || remaining <= 0 {
				break
			}
			content = textutil.TruncateString(content, remaining)
		}

		blocks.WriteString(header)
		blocks.WriteString(content)
		blocks.WriteString("\n\n")
		sel.chars += utf8.RuneCountInString(header) + utf8.RuneCountInString(content)
		perDoc[r.DocumentID]++
		sel.sources = append(sel.sources, Source{Index: idx, Result: r, Relevance: r.CombinedScore})
	}

	var prompt strings.Builder
	prompt.WriteString(questionTypeInstructions[qType])
	prompt.WriteString("\n\nContext:\n")
	prompt.WriteString(blocks.String())
	prompt.WriteString("Question: ")
	prompt.WriteString(question)
	sel.prompt = prompt.String()
	return sel
}

// confidence 由平均相似度、跨文档一致性和上下文完整度加权得到。
func (s *Synthesizer) confidence(sources []Source, available int) float64 {
	if len(sources) == 0 || available == 0 {
		return 0
	}

	var sum float64
	for _, src := range sources {
		sum += src.Relevance
	}
	similarity := sum / float64(len(sources))

	// 同一概念被多少个不同文档支持
	docsByConcept := make(map[string]map[string]struct{})
	for _, src := range sources {
		for _, c := range src.Result.Concepts {
			if docsByConcept[c] == nil {
				docsByConcept[c] = make(map[string]struct{})
			}
			docsByConcept[c][src.Result.DocumentID] = struct{}{}
		}
	}
	support := 0
	for _, docs := range docsByConcept {
		support = max(support, len(docs))
	}
	agreement := textutil.Clamp01(float64(support) / float64(max(countDocuments(sources), 2)))

	completeness := textutil.Clamp01(float64(len(sources)) / float64(available))

	return weightedMean(
		[]float64{similarity, agreement, completeness},
		[]float64{s.config.SimilarityWeight, s.config.AgreementWeight, s.config.CompletenessWeight},
	)
}

// analyze 汇总证据中的关键概念、司法管辖区、风险、合规和模糊用语。
func (s *Synthesizer) analyze(sources []Source, analysis *QueryAnalysis) *LegalAnalysis {
	la := &LegalAnalysis{
		KeyConcepts:     []string{},
		Jurisdictions:   []string{},
		RiskFactors:     []string{},
		ComplianceNotes: []string{},
		AmbiguousTerms:  []string{},
	}

	conceptFreq := make(map[string]int)
	if analysis != nil {
		for _, c := range analysis.Concepts {
			conceptFreq[c]++
		}
		la.Jurisdictions = append(la.Jurisdictions, analysis.Entities.Jurisdictions...)
	}

	var text strings.Builder
	for _, src := range sources {
		for _, c := range src.Result.Concepts {
			conceptFreq[c]++
		}
		text.WriteString(src.Result.Content)
		text.WriteString("\n")
	}
	la.KeyConcepts = textutil.TopTerms(conceptFreq, 0)
	if la.KeyConcepts == nil {
		la.KeyConcepts = []string{}
	}

	body := text.String()
	for _, j := range ExtractEntities(body).Jurisdictions {
		la.Jurisdictions = appendUnique(la.Jurisdictions, j)
	}
	la.RiskFactors = append(la.RiskFactors, containsAny(body, riskTerms)...)
	la.ComplianceNotes = append(la.ComplianceNotes, containsAny(body, complianceTerms)...)
	la.AmbiguousTerms = append(la.AmbiguousTerms, containsAny(body, ambiguityTerms)...)
	return la
}

func recommendationsForAnalysis(la *LegalAnalysis, chunks int) []string {
	recs := []string{}
	if len(la.RiskFactors) > 0 {
		recs = append(recs, "Conduct thorough risk assessment for identified exposures")
	}
	if len(la.ComplianceNotes) > 0 {
		recs = append(recs, "Verify compliance with all applicable regulations")
	}
	if len(la.AmbiguousTerms) > 0 {
		recs = append(recs, "Clarify ambiguous language with legal counsel")
	}
	if chunks < 3 {
		recs = append(recs, "Consider reviewing additional related documents")
	}
	if len(recs) == 0 {
		recs = append(recs, "Have this analysis reviewed by qualified legal counsel")
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// extractPatterns 在证据句中识别法律模式，每句每类最多记录一次。
func extractPatterns(sources []Source) []PatternMatch {
	var out []PatternMatch
	for _, src := range sources {
		for _, sentence := range sentenceSplit.Split(src.Result.Content, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			for _, pm := range patternMarkers {
				if len(containsAny(sentence, pm.markers)) == 0 {
					continue
				}
				out = append(out, PatternMatch{
					Category: pm.category,
					Text:     textutil.TruncateString(sentence, 200),
					ChunkID:  src.Result.ChunkID,
				})
				if len(out) >= maxPatterns {
					return out
				}
			}
		}
	}
	return out
}

// ClassifyQuestionType 按命中线索数最多的类别归类问题，没有命中时为 general。
func ClassifyQuestionType(question string) string {
	best, bestHits := "general", 0
	for _, qt := range questionTypeCues {
		if hits := len(containsAny(question, qt.cues)); hits > bestHits {
			best, bestHits = qt.name, hits
		}
	}
	return best
}

// ConfidenceLevel 把置信度映射为 high / medium / low。
func ConfidenceLevel(c float64) string {
	switch {
	case c > 0.8:
		return "high"
	case c > 0.6:
		return "medium"
	default:
		return "low"
	}
}

func countDocuments(sources []Source) int {
	docs := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		docs[s.Result.DocumentID] = struct{}{}
	}
	return len(docs)
}

// sourceDocuments 返回来源文档 ID，已排序。
func sourceDocuments(sources []Source) []string {
	docs := make([]string, 0, len(sources))
	for _, s := range sources {
		if !textutil.ContainsString(docs, s.Result.DocumentID) {
			docs = append(docs, s.Result.DocumentID)
		}
	}
	sort.Strings(docs)
	return docs
}
