package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{name: "identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, expected: 1},
		{name: "orthogonal", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, expected: 0},
		{name: "opposite", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, expected: -1},
		{name: "empty", a: []float32{}, b: []float32{}, expected: 0},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1}, expected: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, textutil.NormalizeCosineSimilarity(1), 0.0001)
	assert.InDelta(t, 0.0, textutil.NormalizeCosineSimilarity(-1), 0.0001)
	assert.InDelta(t, 0.5, textutil.NormalizeCosineSimilarity(0), 0.0001)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, textutil.Clamp01(-0.2))
	assert.Equal(t, 1.0, textutil.Clamp01(1.7))
	assert.Equal(t, 0.4, textutil.Clamp01(0.4))
}

func TestHashString(t *testing.T) {
	assert.Equal(t, textutil.HashString("test"), textutil.HashString("test"))
	assert.NotEqual(t, textutil.HashString("test"), textutil.HashString("test2"))
	assert.Len(t, textutil.HashString("test"), 64)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", textutil.TruncateString("hello", 10))
	assert.Equal(t, "hel", textutil.TruncateString("hello", 3))
	assert.Equal(t, "", textutil.TruncateString("hello", -1))
	assert.Equal(t, "条款", textutil.TruncateString("条款内容", 2))
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "what is force majeure?", textutil.NormalizeQuery("  What IS\tforce \n majeure?  "))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "party's", "non-compete", "clause", "12"},
		textutil.Tokenize("The Party's non-compete clause (12)."))
}

func TestSignificantTerms(t *testing.T) {
	text := "The licensee shall pay the licensor. The licensee shall indemnify the licensor. Payment is due."
	terms := textutil.SignificantTerms(text, 2)
	assert.Equal(t, map[string]int{"licensee": 2, "shall": 2, "licensor": 2}, terms)

	all := textutil.SignificantTerms(text, 0)
	assert.Contains(t, all, "payment")
	assert.NotContains(t, all, "the")
	assert.NotContains(t, all, "is")
}

func TestJaccard(t *testing.T) {
	a := map[string]int{"x": 1, "y": 1, "z": 1}
	b := map[string]int{"y": 3, "z": 1, "w": 2}
	assert.InDelta(t, 0.5, textutil.Jaccard(a, b), 0.0001)
	assert.InDelta(t, textutil.Jaccard(a, b), textutil.Jaccard(b, a), 0)
	assert.Equal(t, 0.0, textutil.Jaccard(map[string]int{}, map[string]int{}))
}

func TestTopTerms(t *testing.T) {
	freq := map[string]int{"beta": 2, "alpha": 2, "gamma": 5, "delta": 1}
	assert.Equal(t, []string{"gamma", "alpha", "beta"}, textutil.TopTerms(freq, 3))
	assert.Len(t, textutil.TopTerms(freq, 0), 4)
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		phrase string
		want   bool
	}{
		{name: "whole word", text: "The term of this lease", phrase: "term", want: true},
		{name: "inside another word", text: "Termination of the agreement", phrase: "term", want: false},
		{name: "phrase", text: "a Force Majeure event", phrase: "force majeure", want: true},
		{name: "suffix boundary", text: "terms apply", phrase: "term", want: false},
		{name: "empty phrase", text: "anything", phrase: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.ContainsWord(tt.text, tt.phrase))
		})
	}
}

func TestReplaceWord(t *testing.T) {
	got := textutil.ReplaceWord("Termination after the term ends", "term", "duration")
	assert.Equal(t, "Termination after the duration ends", got)
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, textutil.UniqueStrings([]string{"a", "b", "a", "c", "b"}))
	assert.True(t, textutil.ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, textutil.ContainsString(nil, "b"))
}
