package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/errors"
)

// OptimizeMode 查询优化模式。
type OptimizeMode string

const (
	ModeLegal         OptimizeMode = "legal"
	ModeSemantic      OptimizeMode = "semantic"
	ModePerformance   OptimizeMode = "performance"
	ModeComprehensive OptimizeMode = "comprehensive"
)

// ParseOptimizeMode 解析优化模式，空字符串返回 def。
func ParseOptimizeMode(s string, def OptimizeMode) (OptimizeMode, error) {
	switch m := OptimizeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return def, nil
	case ModeLegal, ModeSemantic, ModePerformance, ModeComprehensive:
		return m, nil
	default:
		return "", errors.ErrInvalidMode.WithMessagef("unknown optimization mode %q", s)
	}
}

// OptimizerConfig 优化器配置。
type OptimizerConfig struct {
	ComplexityWeight  float64
	ClarityWeight     float64
	SpecificityWeight float64
	// VectorWeight/KeywordWeight 是 hybrid 策略使用的检索权重。
	VectorWeight  float64
	KeywordWeight float64
	DefaultMode   OptimizeMode
}

// DefaultOptimizerConfig 返回默认配置。
func DefaultOptimizerConfig() *OptimizerConfig {
	return &OptimizerConfig{
		ComplexityWeight:  1,
		ClarityWeight:     1,
		SpecificityWeight: 1,
		VectorWeight:      0.7,
		KeywordWeight:     0.3,
		DefaultMode:       ModeLegal,
	}
}

const (
	maxSynonymsPerTerm = 3
	maxRecommendations = 5
)

var (
	ambiguousWords = []string{
		"it", "its", "they", "them", "their", "this", "that", "these", "those",
		"some", "many", "several", "few", "various", "certain", "stuff", "things", "something", "etc",
	}
	clauseMarkers = []string{"and", "or", "but", "if", "unless", "whereas", "provided", "which", "where", "because"}
)

// Optimizer 查询优化器。
type Optimizer struct {
	analyzer *Analyzer
	config   *OptimizerConfig
}

// NewOptimizer 创建查询优化器。
func NewOptimizer(analyzer *Analyzer, config *OptimizerConfig) *Optimizer {
	if config == nil {
		config = DefaultOptimizerConfig()
	}
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	return &Optimizer{analyzer: analyzer, config: config}
}

// Optimize 改写并评估查询。除 comprehensive 模式外，扩展词只追加在原查询之后。
func (o *Optimizer) Optimize(text, queryContext string, mode OptimizeMode) (*OptimizedQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.ErrEmptyQuery
	}
	if mode == "" {
		mode = o.config.DefaultMode
	}

	analysis := o.analyzer.Analyze(text)
	synonyms, matched := synonymExpansions(text)
	contextTerms := contextExpansions(text, queryContext)

	var (
		expansions []string
		optimized  string
	)
	switch mode {
	case ModeLegal:
		expansions = mergeTerms(text, synonyms, intentExpansions[analysis.Intent], contextTerms)
		optimized = appendTerms(text, expansions)
	case ModeSemantic:
		expansions = mergeTerms(text, synonyms, contextTerms)
		optimized = appendTerms(text, expansions)
	case ModePerformance:
		expansions = mergeTerms(text, synonyms, contextTerms)
		if len(expansions) > 2 {
			expansions = expansions[:2]
		}
		optimized = appendTerms(text, expansions)
	case ModeComprehensive:
		optimized = substituteSynonyms(text, matched)
		expansions = mergeTerms(text, synonyms, intentExpansions[analysis.Intent], contextTerms)
		optimized = appendTerms(optimized, mergeTerms(optimized, intentExpansions[analysis.Intent], contextTerms))
	default:
		return nil, errors.ErrInvalidMode.WithMessagef("unknown optimization mode %q", mode)
	}

	scores := o.Score(text, analysis)
	return &OptimizedQuery{
		Original:        text,
		Optimized:       optimized,
		Mode:            mode,
		ExpansionTerms:  expansions,
		Rationale:       rationale(mode, analysis, matched, expansions),
		Suggestions:     suggestionsFor(scores),
		Scores:          scores,
		Strategy:        o.Strategy(text, analysis, scores),
		Recommendations: recommendationsFor(text, analysis, scores),
		Analysis:        analysis,
	}, nil
}

// Score 计算复杂度、清晰度、具体性以及加权总分。
func (o *Optimizer) Score(text string, analysis *QueryAnalysis) QueryScores {
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		return QueryScores{}
	}
	if analysis == nil {
		analysis = o.analyzer.Analyze(text)
	}

	clauses := strings.Count(text, ",") + strings.Count(text, ";")
	ambiguous := 0
	for _, tok := range tokens {
		if textutil.ContainsString(clauseMarkers, tok) {
			clauses++
		}
		if textutil.ContainsString(ambiguousWords, tok) {
			ambiguous++
		}
	}

	complexity := textutil.Clamp01(0.6*minFloat(float64(len(tokens))/30, 1) + 0.4*minFloat(float64(clauses)/4, 1))
	clarity := 1 / (1 + 0.5*float64(ambiguous))
	specificity := textutil.Clamp01(0.1 + 0.2*float64(len(analysis.Concepts)) + 0.15*float64(analysis.Entities.Count()))

	s := QueryScores{
		Complexity:  complexity,
		Clarity:     clarity,
		Specificity: specificity,
	}
	s.Overall = weightedMean(
		[]float64{s.Complexity, s.Clarity, s.Specificity},
		[]float64{o.config.ComplexityWeight, o.config.ClarityWeight, o.config.SpecificityWeight},
	)
	return s
}

// Strategy 根据分析结果选择检索策略。
func (o *Optimizer) Strategy(text string, analysis *QueryAnalysis, scores QueryScores) SearchStrategy {
	s := SearchStrategy{
		Approach:      "hybrid",
		VectorWeight:  o.config.VectorWeight,
		KeywordWeight: o.config.KeywordWeight,
		Filters:       append([]string{}, analysis.SuggestedChunkTypes...),
		BoostConcepts: append([]string{}, analysis.Concepts...),
	}
	switch {
	case strings.Count(text, `"`) >= 2 || len(analysis.Entities.Documents) > 0 && sectionRegex.MatchString(text):
		s.Approach, s.VectorWeight, s.KeywordWeight = "keyword", 0.3, 0.7
	case analysis.Intent == IntentGeneral && len(analysis.Concepts) == 0 && scores.Complexity <= 0.6:
		s.Approach, s.VectorWeight, s.KeywordWeight = "semantic", 0.9, 0.1
	}
	return s
}

// PredictPerformance 根据检索结果预测查询效果。
func PredictPerformance(results []SearchResult) *PerformancePrediction {
	p := &PerformancePrediction{ResultCount: len(results)}
	if len(results) == 0 {
		p.Score, p.Label = 0.1, "poor"
		return p
	}
	var sum float64
	for _, r := range results {
		sum += r.CombinedScore
	}
	p.AverageScore = sum / float64(len(results))
	switch {
	case len(results) < 3:
		p.Score, p.Label = 0.4, "fair"
	case p.AverageScore > 0.8:
		p.Score, p.Label = 0.9, "excellent"
	case p.AverageScore > 0.6:
		p.Score, p.Label = 0.7, "good"
	default:
		p.Score, p.Label = 0.5, "fair"
	}
	return p
}

// Issues 列出评分暴露的问题。
func Issues(text string, scores QueryScores) []string {
	issues := []string{}
	if textutil.CountWords(text) < 3 {
		issues = append(issues, "query is very short")
	}
	if scores.Clarity < 0.7 {
		issues = append(issues, "query contains ambiguous pronouns or vague quantifiers")
	}
	if scores.Specificity < 0.3 {
		issues = append(issues, "no legal concept or entity detected")
	}
	if scores.Complexity > 0.7 {
		issues = append(issues, "query combines several questions")
	}
	return issues
}

// suggestionsFor 根据最低的评分生成改进建议。
func suggestionsFor(s QueryScores) []string {
	lowest, name := s.Complexity, "complexity"
	if s.Clarity < lowest {
		lowest, name = s.Clarity, "clarity"
	}
	if s.Specificity < lowest {
		name = "specificity"
	}
	switch name {
	case "complexity":
		return []string{
			"Add more detail: name the clause, party or obligation you are asking about",
			"Phrase the query as a complete question",
		}
	case "clarity":
		return []string{
			"Replace pronouns such as 'it' or 'they' with the party or document they refer to",
			"Replace vague quantities with specific amounts or periods",
		}
	default:
		return []string{
			"Add a document type or time period",
			"Name the legal concept, for example termination, liability or confidentiality",
		}
	}
}

func recommendationsFor(text string, a *QueryAnalysis, s QueryScores) []string {
	var recs []string
	if a.Intent == IntentGeneral {
		recs = append(recs, "Consider being more specific about what you're looking for")
	}
	if len(a.Concepts) == 0 {
		recs = append(recs, "Include specific legal terms for better results")
	}
	if len(a.Entities.Parties) == 0 && len(a.Entities.Documents) == 0 {
		recs = append(recs, "Specify parties, document types, or sections for targeted search")
	}
	if s.Complexity > 0.7 {
		recs = append(recs, "Consider breaking down complex queries into simpler parts")
	}
	if hasCue(strings.ToLower(text), []string{"compare", "difference", "versus", "vs"}) {
		recs = append(recs, "Use document comparison for multi-document analysis")
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}

func rationale(mode OptimizeMode, a *QueryAnalysis, matched, expansions []string) string {
	parts := []string{fmt.Sprintf("%s mode", mode), fmt.Sprintf("intent %s", a.Intent)}
	if len(a.Concepts) > 0 {
		parts = append(parts, "concepts "+strings.Join(a.Concepts, ", "))
	}
	if len(matched) > 0 {
		parts = append(parts, "expanded "+strings.Join(matched, ", "))
	}
	parts = append(parts, fmt.Sprintf("%d expansion terms", len(expansions)))
	return strings.Join(parts, "; ")
}

// synonymExpansions 返回命中术语的前三个同义词以及命中的术语。
func synonymExpansions(text string) (syns, matched []string) {
	for _, entry := range legalSynonyms {
		if !textutil.ContainsWord(text, entry.term) {
			continue
		}
		matched = append(matched, entry.term)
		syns = append(syns, topSynonyms(entry.term)...)
	}
	return syns, matched
}

func topSynonyms(term string) []string {
	for _, entry := range legalSynonyms {
		if entry.term == term {
			n := min(len(entry.synonyms), maxSynonymsPerTerm)
			return entry.synonyms[:n]
		}
	}
	return nil
}

// substituteSynonyms 把命中的术语整词替换为 "(term OR syn...)"。
// 先替换为占位符，避免后一个术语在已替换的分组内再次命中。
func substituteSynonyms(text string, matched []string) string {
	out := text
	for i, term := range matched {
		out = textutil.ReplaceWord(out, term, fmt.Sprintf("\x00%d\x00", i))
	}
	for i, term := range matched {
		group := append([]string{term}, topSynonyms(term)...)
		out = strings.ReplaceAll(out, fmt.Sprintf("\x00%d\x00", i), "("+strings.Join(group, " OR ")+")")
	}
	return out
}

// contextExpansions 取上下文中出现最多且不在查询里的三个词项。
func contextExpansions(text, context string) []string {
	if strings.TrimSpace(context) == "" {
		return nil
	}
	freq := textutil.TermFrequencies(context)
	for tok := range textutil.TermFrequencies(text) {
		delete(freq, tok)
	}
	return textutil.TopTerms(freq, 3)
}

// mergeTerms 合并扩展词，去重并排除已在 text 中整词出现的词。
func mergeTerms(text string, groups ...[]string) []string {
	out := []string{}
	for _, g := range groups {
		for _, t := range g {
			if textutil.ContainsWord(text, t) || textutil.ContainsString(out, t) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func appendTerms(text string, terms []string) string {
	if len(terms) == 0 {
		return text
	}
	return text + " " + strings.Join(terms, " ")
}

func weightedMean(values, weights []float64) float64 {
	var sum, total float64
	for i, v := range values {
		w := weights[i]
		if w < 0 {
			w = 0
		}
		sum += v * w
		total += w
	}
	if total == 0 {
		for _, v := range values {
			sum += v
		}
		return textutil.Clamp01(sum / float64(len(values)))
	}
	return textutil.Clamp01(sum / total)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
