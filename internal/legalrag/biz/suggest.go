package biz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

const maxSuggestions = 8

var conceptTemplates = []struct {
	format string
	weight float64
}{
	{"What are the %[1]s obligations?", 0},
	{"Find %[2]s related to %[1]s", 0.05},
	{"What is the definition of %[1]s?", 0.1},
	{"How does %[1]s affect termination?", 0.15},
}

var genericTemplates = []string{
	"What are the %s requirements?",
	"What happens if %s?",
	"Who is responsible for %s?",
	"How is %s defined in the contract?",
}

// Suggester 根据部分输入生成查询建议。
type Suggester struct{}

// NewSuggester 创建建议生成器。
func NewSuggester() *Suggester {
	return &Suggester{}
}

// Suggest 返回按置信度降序排列的建议，最多 8 条。
// 已识别的概念优先，其次是前缀匹配的概念；都没有时使用通用模板。
func (s *Suggester) Suggest(partial string) []Suggestion {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return []Suggestion{}
	}

	var out []Suggestion
	detected := DetectConcepts(partial)
	for _, c := range detected {
		out = append(out, conceptSuggestions(c, 0.9, "Detected concept: "+ConceptLabel(c))...)
	}

	tokens := textutil.Tokenize(partial)
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		for _, c := range prefixConcepts(last) {
			if textutil.ContainsString(detected, c) {
				continue
			}
			out = append(out, conceptSuggestions(c, 0.7, fmt.Sprintf("Matches concept prefix %q", last))...)
		}
	}

	if len(out) == 0 {
		for i, tmpl := range genericTemplates {
			out = append(out, Suggestion{
				Text:        fmt.Sprintf(tmpl, partial),
				Confidence:  0.4 - 0.05*float64(i),
				Explanation: "General legal question template",
			})
		}
	}

	out = dedupeSuggestions(out)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Text < out[j].Text
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func conceptSuggestions(concept string, base float64, explanation string) []Suggestion {
	label := ConceptLabel(concept)
	related := ConceptLabel(relatedConcepts[concept])
	out := make([]Suggestion, 0, len(conceptTemplates))
	for _, t := range conceptTemplates {
		if concept == ConceptTermination && strings.Contains(t.format, "termination") {
			continue
		}
		out = append(out, Suggestion{
			Text:        fmt.Sprintf(t.format, label, related),
			Confidence:  base - t.weight,
			Explanation: explanation,
		})
	}
	return out
}

// prefixConcepts 返回概念名或关键词以 prefix 开头的概念。prefix 少于 2 个字符时不匹配。
func prefixConcepts(prefix string) []string {
	if len(prefix) < 2 {
		return nil
	}
	var out []string
	for _, g := range conceptLexicon {
		if strings.HasPrefix(g.name, prefix) {
			out = append(out, g.name)
			continue
		}
		for _, kw := range g.keywords {
			if strings.HasPrefix(strings.TrimSuffix(kw, "*"), prefix) {
				out = append(out, g.name)
				break
			}
		}
	}
	return out
}

func dedupeSuggestions(in []Suggestion) []Suggestion {
	seen := make(map[string]struct{}, len(in))
	out := make([]Suggestion, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(s.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
