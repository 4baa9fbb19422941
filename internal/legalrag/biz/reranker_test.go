package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReranker_IntentBoostReorders(t *testing.T) {
	in := []SearchResult{
		result("c1", "d1", 0.80, "clause"),
		result("d1", "d2", 0.75, "definition"),
	}
	analysis := &QueryAnalysis{Intent: IntentDefinition, SuggestedChunkTypes: []string{"Definition"}}

	out := NewReranker(nil).Rerank(in, analysis)
	require.Len(t, out, 2)
	assert.Equal(t, "d1", out[0].ChunkID)
	assert.InDelta(t, 0.85, out[0].RerankScore, 1e-9)
	assert.InDelta(t, 0.80, out[1].RerankScore, 1e-9)
}

func TestReranker_ConceptBoostIsCapped(t *testing.T) {
	in := []SearchResult{
		result("a", "d1", 0.5, "clause", ConceptObligations, ConceptLiability, ConceptPayment, ConceptDispute),
	}
	analysis := &QueryAnalysis{
		Concepts:            []string{ConceptObligations, ConceptLiability, ConceptPayment, ConceptDispute},
		SuggestedChunkTypes: []string{"clause"},
	}

	out := NewReranker(nil).Rerank(in, analysis)
	// 0.1 意图 + min(4*0.05, 0.15) 概念
	assert.InDelta(t, 0.75, out[0].RerankScore, 1e-9)

	capped := NewReranker(&RerankConfig{IntentBoost: 0.2, ConceptBoost: 0.1, ConceptBoostCap: 0.4, TotalBoostCap: 0.25})
	out = capped.Rerank(in, analysis)
	assert.InDelta(t, 0.75, out[0].RerankScore, 1e-9)
}

func TestReranker_DoesNotMutateInput(t *testing.T) {
	in := []SearchResult{
		result("b", "d1", 0.4, "clause"),
		result("a", "d1", 0.9, "definition"),
	}
	analysis := &QueryAnalysis{SuggestedChunkTypes: []string{"clause"}}

	out := NewReranker(nil).Rerank(in, analysis)
	assert.Equal(t, "b", in[0].ChunkID)
	assert.Zero(t, in[0].RerankScore)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestReranker_NilAnalysisAndTies(t *testing.T) {
	in := []SearchResult{
		result("z", "d1", 0.5, "clause"),
		result("y", "d1", 0.5, "clause"),
		result("x", "d1", 0.6, "clause"),
	}
	out := NewReranker(nil).Rerank(in, nil)
	assert.Equal(t, []string{"x", "y", "z"}, []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID})
	assert.InDelta(t, 0.6, out[0].RerankScore, 1e-9)
}

func TestReranker_Deterministic(t *testing.T) {
	in := []SearchResult{
		result("a", "d1", 0.7, "clause", ConceptPayment),
		result("b", "d2", 0.7, "definition"),
		result("c", "d3", 0.65, "clause", ConceptPayment),
	}
	analysis := &QueryAnalysis{Concepts: []string{ConceptPayment}, SuggestedChunkTypes: []string{"definition"}}
	r := NewReranker(nil)

	first := r.Rerank(in, analysis)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Rerank(in, analysis))
	}
	// b: 0.8, a: 0.75, c: 0.70
	assert.Equal(t, "b", first[0].ChunkID)
	assert.Equal(t, "a", first[1].ChunkID)
	assert.Equal(t, "c", first[2].ChunkID)
}
