package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/pkg/errors"
)

func TestParseOptimizeMode(t *testing.T) {
	m, err := ParseOptimizeMode("", ModeLegal)
	require.NoError(t, err)
	assert.Equal(t, ModeLegal, m)

	m, err = ParseOptimizeMode(" Semantic ", ModeLegal)
	require.NoError(t, err)
	assert.Equal(t, ModeSemantic, m)

	_, err = ParseOptimizeMode("turbo", ModeLegal)
	assert.ErrorIs(t, err, errors.ErrInvalidMode)
}

func TestOptimizer_Optimize_Modes(t *testing.T) {
	o := NewOptimizer(nil, nil)
	const text = "termination of the contract"

	legal, err := o.Optimize(text, "", ModeLegal)
	require.NoError(t, err)
	assert.Equal(t, []string{"agreement", "compact", "accord", "cancellation", "dissolution", "expiry"}, legal.ExpansionTerms)
	assert.Equal(t, text+" agreement compact accord cancellation dissolution expiry", legal.Optimized)
	assert.Equal(t, text, legal.Original)

	perf, err := o.Optimize(text, "", ModePerformance)
	require.NoError(t, err)
	assert.Equal(t, []string{"agreement", "compact"}, perf.ExpansionTerms)
	assert.Equal(t, text+" agreement compact", perf.Optimized)

	comp, err := o.Optimize(text, "", ModeComprehensive)
	require.NoError(t, err)
	assert.Equal(t, "(termination OR cancellation OR dissolution OR expiry) of the (contract OR agreement OR compact OR accord)", comp.Optimized)
	assert.Equal(t, legal.ExpansionTerms, comp.ExpansionTerms)

	def, err := o.Optimize(text, "", "")
	require.NoError(t, err)
	assert.Equal(t, ModeLegal, def.Mode)
}

func TestOptimizer_Optimize_IsAdditive(t *testing.T) {
	o := NewOptimizer(nil, nil)
	for _, mode := range []OptimizeMode{ModeLegal, ModeSemantic, ModePerformance} {
		got, err := o.Optimize("What is confidentiality?", "", mode)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got.Optimized, "What is confidentiality?"), mode)
	}

	got, err := o.Optimize("What is confidentiality?", "", ModeLegal)
	require.NoError(t, err)
	assert.Equal(t, []string{"secrecy", "non-disclosure", "privacy", "definition", "meaning"}, got.ExpansionTerms)
	assert.Contains(t, got.Rationale, "legal mode")
	assert.Contains(t, got.Rationale, "intent definition")
	assert.Contains(t, got.Rationale, "5 expansion terms")
}

func TestOptimizer_Optimize_Context(t *testing.T) {
	o := NewOptimizer(nil, nil)

	got, err := o.Optimize("termination rights", "rent rent deposit deposit arrears", ModeSemantic)
	require.NoError(t, err)
	assert.Equal(t, []string{"cancellation", "dissolution", "expiry", "deposit", "rent", "arrears"}, got.ExpansionTerms)
}

func TestOptimizer_Optimize_Errors(t *testing.T) {
	o := NewOptimizer(nil, nil)

	_, err := o.Optimize("  ", "", ModeLegal)
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)

	_, err = o.Optimize("termination", "", OptimizeMode("turbo"))
	assert.ErrorIs(t, err, errors.ErrInvalidMode)
}

func TestOptimizer_Score(t *testing.T) {
	o := NewOptimizer(nil, nil)

	assert.Equal(t, QueryScores{}, o.Score("", nil))

	s := o.Score("termination of the contract", nil)
	assert.InDelta(t, 0.08, s.Complexity, 1e-9)
	assert.InDelta(t, 1.0, s.Clarity, 1e-9)
	assert.InDelta(t, 0.45, s.Specificity, 1e-9)
	assert.InDelta(t, (0.08+1+0.45)/3, s.Overall, 1e-9)

	s = o.Score("what about it", nil)
	assert.InDelta(t, 1/1.5, s.Clarity, 1e-9)
}

func TestOptimizer_Strategy(t *testing.T) {
	o := NewOptimizer(nil, nil)
	a := NewAnalyzer()

	tests := []struct {
		text     string
		approach string
		vector   float64
	}{
		{`"force majeure" clause`, "keyword", 0.3},
		{"Section 4.2 of the agreement", "keyword", 0.3},
		{"tell me something", "semantic", 0.9},
		{"termination of the contract", "hybrid", 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			analysis := a.Analyze(tt.text)
			s := o.Strategy(tt.text, analysis, o.Score(tt.text, analysis))
			assert.Equal(t, tt.approach, s.Approach)
			assert.InDelta(t, tt.vector, s.VectorWeight, 1e-9)
			assert.InDelta(t, 1, s.VectorWeight+s.KeywordWeight, 1e-9)
		})
	}
}

func TestPredictPerformance(t *testing.T) {
	p := PredictPerformance(nil)
	assert.Equal(t, "poor", p.Label)
	assert.InDelta(t, 0.1, p.Score, 1e-9)

	p = PredictPerformance([]SearchResult{result("a", "d", 0.9, "clause"), result("b", "d", 0.9, "clause")})
	assert.Equal(t, "fair", p.Label)
	assert.InDelta(t, 0.4, p.Score, 1e-9)

	three := func(score float64) []SearchResult {
		return []SearchResult{
			result("a", "d", score, "clause"),
			result("b", "d", score, "clause"),
			result("c", "d", score, "clause"),
		}
	}
	assert.Equal(t, "excellent", PredictPerformance(three(0.9)).Label)
	assert.Equal(t, "good", PredictPerformance(three(0.7)).Label)
	p = PredictPerformance(three(0.3))
	assert.Equal(t, "fair", p.Label)
	assert.Equal(t, 3, p.ResultCount)
	assert.InDelta(t, 0.3, p.AverageScore, 1e-9)
}

func TestIssuesAndSuggestions(t *testing.T) {
	o := NewOptimizer(nil, nil)

	issues := Issues("it", o.Score("it", nil))
	assert.Equal(t, []string{
		"query is very short",
		"query contains ambiguous pronouns or vague quantifiers",
		"no legal concept or entity detected",
	}, issues)

	clarity := suggestionsFor(QueryScores{Complexity: 0.9, Clarity: 0.2, Specificity: 0.5})
	assert.Contains(t, clarity[0], "pronouns")

	specificity := suggestionsFor(QueryScores{Complexity: 0.9, Clarity: 0.8, Specificity: 0.1})
	assert.Contains(t, specificity[0], "document type")

	complexity := suggestionsFor(QueryScores{Complexity: 0.1, Clarity: 0.8, Specificity: 0.5})
	assert.Contains(t, complexity[0], "Add more detail")
}

func TestRecommendationsFor(t *testing.T) {
	a := NewAnalyzer()
	text := "compare these"
	recs := recommendationsFor(text, a.Analyze(text), QueryScores{})
	assert.Equal(t, []string{
		"Consider being more specific about what you're looking for",
		"Include specific legal terms for better results",
		"Specify parties, document types, or sections for targeted search",
		"Use document comparison for multi-document analysis",
	}, recs)
}
