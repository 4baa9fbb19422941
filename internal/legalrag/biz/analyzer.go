package biz

import (
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

// Analyzer 查询分析器：识别意图、法律概念和实体。无状态，可并发使用。
type Analyzer struct{}

// NewAnalyzer 创建查询分析器。
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze 分析查询文本。没有任何命中时返回 general 意图和空集合。
func (a *Analyzer) Analyze(text string) *QueryAnalysis {
	entities := ExtractEntities(text)
	concepts := DetectConcepts(text)
	intent := classifyIntent(text)

	confidence := 0.5
	if intent != IntentGeneral {
		confidence = 0.8
	}
	confidence = textutil.Clamp01(confidence + 0.1*float64(len(concepts)))

	if concepts == nil {
		concepts = []string{}
	}
	suggested := append([]string{}, intentChunkTypes[intent]...)

	return &QueryAnalysis{
		Intent:              intent,
		Concepts:            concepts,
		Entities:            entities,
		Confidence:          confidence,
		SuggestedChunkTypes: suggested,
	}
}

// classifyIntent 按顺序匹配规则：definition、procedure、temporal，否则 general。
func classifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	switch {
	case hasCue(lower, definitionCues):
		return IntentDefinition
	case hasCue(lower, procedureCues) && !textutil.ContainsWord(lower, "how long"):
		return IntentProcedure
	case hasCue(lower, temporalCues):
		return IntentTemporal
	}
	for _, re := range dateRegexes {
		if re.MatchString(text) {
			return IntentTemporal
		}
	}
	if durationRegex.MatchString(text) {
		return IntentTemporal
	}
	return IntentGeneral
}

func hasCue(text string, cues []string) bool {
	for _, c := range cues {
		if textutil.ContainsWord(text, c) {
			return true
		}
	}
	return false
}

// ExtractEntities 基于规则抽取当事方、司法管辖区、日期、文档引用和期间。
func ExtractEntities(text string) Entities {
	e := Entities{
		Parties:       []string{},
		Jurisdictions: []string{},
		Dates:         []string{},
		Documents:     []string{},
		Periods:       []string{},
	}
	if strings.TrimSpace(text) == "" {
		return e
	}

	for _, m := range companyRegex.FindAllString(text, -1) {
		e.Parties = appendUnique(e.Parties, strings.TrimSuffix(strings.TrimSpace(m), "."))
	}
	for _, m := range namedPartyRe.FindAllStringSubmatch(text, -1) {
		e.Parties = appendUnique(e.Parties, strings.TrimSpace(m[1])+" Party")
	}
	for _, role := range containsAny(text, partyRoles) {
		if !containsFold(e.Parties, role) {
			e.Parties = appendUnique(e.Parties, role)
		}
	}

	for _, name := range jurisdictionNames {
		if textutil.ContainsWord(text, name) && !subsumed(e.Jurisdictions, name) {
			e.Jurisdictions = append(e.Jurisdictions, name)
		}
	}

	for _, re := range dateRegexes {
		for _, m := range re.FindAllString(text, -1) {
			e.Dates = appendUnique(e.Dates, m)
		}
	}

	for _, m := range sectionRegex.FindAllString(text, -1) {
		e.Documents = appendUnique(e.Documents, m)
	}
	for _, w := range containsAny(text, documentWords) {
		if !subsumed(e.Documents, w) {
			e.Documents = appendUnique(e.Documents, w)
		}
	}

	for _, m := range durationRegex.FindAllString(text, -1) {
		e.Periods = appendUnique(e.Periods, m)
	}
	for _, w := range containsAny(text, periodWords) {
		if !subsumed(e.Periods, w) {
			e.Periods = append(e.Periods, w)
		}
	}
	return e
}

func appendUnique(items []string, v string) []string {
	if v == "" || textutil.ContainsString(items, v) {
		return items
	}
	return append(items, v)
}

func containsFold(items []string, v string) bool {
	for _, it := range items {
		if strings.EqualFold(it, v) {
			return true
		}
	}
	return false
}

// subsumed 报告 v 是否已作为整词出现在某个已有条目中。
func subsumed(items []string, v string) bool {
	for _, it := range items {
		if textutil.ContainsWord(it, v) {
			return true
		}
	}
	return false
}
