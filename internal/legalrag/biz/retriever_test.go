package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/llm/resilience"
)

// hiccupIndex 让向量与关键词查询各失败一次后恢复。
type hiccupIndex struct {
	store.Index
	mu      sync.Mutex
	vector  int
	keyword int
}

func (h *hiccupIndex) VectorQuery(ctx context.Context, v []float32, th float64, filter store.Filter, limit int) ([]store.Candidate, error) {
	h.mu.Lock()
	h.vector++
	n := h.vector
	h.mu.Unlock()
	if n == 1 {
		return nil, errBoom
	}
	return h.Index.VectorQuery(ctx, v, th, filter, limit)
}

func (h *hiccupIndex) KeywordQuery(ctx context.Context, text string, filter store.Filter, limit int) ([]store.Candidate, error) {
	h.mu.Lock()
	h.keyword++
	n := h.keyword
	h.mu.Unlock()
	if n == 1 {
		return nil, errBoom
	}
	return h.Index.KeywordQuery(ctx, text, filter, limit)
}

// overlapIndex 记录同时进行中的查询数峰值。
type overlapIndex struct {
	store.Index
	inflight atomic.Int32
	peak     atomic.Int32
}

func (o *overlapIndex) enter() func() {
	n := o.inflight.Add(1)
	for {
		old := o.peak.Load()
		if n <= old || o.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return func() { o.inflight.Add(-1) }
}

func (o *overlapIndex) VectorQuery(ctx context.Context, v []float32, th float64, filter store.Filter, limit int) ([]store.Candidate, error) {
	defer o.enter()()
	return o.Index.VectorQuery(ctx, v, th, filter, limit)
}

func (o *overlapIndex) KeywordQuery(ctx context.Context, text string, filter store.Filter, limit int) ([]store.Candidate, error) {
	defer o.enter()()
	return o.Index.KeywordQuery(ctx, text, filter, limit)
}

func candidate(id string, score float64) store.Candidate {
	return store.Candidate{Chunk: &store.Chunk{ID: id, DocumentID: "doc", Content: "Clause " + id + "."}, Score: score}
}

func TestRetriever_Retrieve_Hybrid(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	require.Len(t, set.Results, 2)

	assert.Equal(t, "nda-1", set.Results[0].ChunkID)
	assert.Equal(t, ProvenanceHybrid, set.Results[0].Provenance)
	assert.InDelta(t, 1.0, set.Results[0].CombinedScore, 1e-9)
	require.NotNil(t, set.Results[0].VectorScore)
	require.NotNil(t, set.Results[0].KeywordScore)
	assert.InDelta(t, 1.0, *set.Results[0].KeywordScore, 1e-9)

	assert.Equal(t, "nda-2", set.Results[1].ChunkID)
	assert.InDelta(t, 0.7*0.9938837+0.3, set.Results[1].CombinedScore, 1e-4)

	assert.False(t, set.Degraded)
	assert.Equal(t, 2, set.TotalCandidates)
	assert.Equal(t, "confidential information", set.Query)
}

func TestRetriever_Retrieve_LimitKeepsTotal(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information", Limit: 1})
	require.NoError(t, err)
	require.Len(t, set.Results, 1)
	assert.Equal(t, "nda-1", set.Results[0].ChunkID)
	assert.Equal(t, 2, set.TotalCandidates)
}

func TestRetriever_Retrieve_Filters(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{
		Text:       "confidential information",
		ChunkTypes: []string{"CLAUSE"},
	})
	require.NoError(t, err)
	require.Len(t, set.Results, 1)
	assert.Equal(t, "nda-2", set.Results[0].ChunkID)

	set, err = r.Retrieve(context.Background(), Query{
		Text:               "confidential information",
		ExcludeDocumentIDs: []string{"nda"},
	})
	require.NoError(t, err)
	assert.Empty(t, set.Results)
}

func TestRetriever_Retrieve_ThresholdOverride(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)
	zero := 0.0

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information", Threshold: &zero})
	require.NoError(t, err)

	ids := make([]string, 0, len(set.Results))
	for _, res := range set.Results {
		ids = append(ids, res.ChunkID)
	}
	// policy-1 只通过向量路径命中
	assert.Contains(t, ids, "policy-1")
	for _, res := range set.Results {
		if res.ChunkID == "policy-1" {
			assert.Equal(t, ProvenanceVector, res.Provenance)
			assert.Nil(t, res.KeywordScore)
		}
	}
}

func TestRetriever_Retrieve_ExpansionTermsOnlyAffectKeywordPath(t *testing.T) {
	emb := fixtureEmbedder()
	r := NewRetriever(fixtureIndex(), emb, nil)

	set, err := r.Retrieve(context.Background(), Query{
		Text:           "confidential information",
		ExpansionTerms: []string{"arbitration"},
	})
	require.NoError(t, err)

	var found bool
	for _, res := range set.Results {
		if res.ChunkID == "lease-1" {
			found = true
			assert.Equal(t, ProvenanceKeyword, res.Provenance)
		}
	}
	assert.True(t, found)
}

func TestRetriever_Retrieve_VectorFailureDegrades(t *testing.T) {
	idx := &flakyIndex{Index: fixtureIndex(), vectorErr: errBoom}
	r := NewRetriever(idx, fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, "vector", set.FailedPath)
	require.Len(t, set.Results, 2)
	for _, res := range set.Results {
		assert.Equal(t, ProvenanceKeyword, res.Provenance)
		assert.InDelta(t, 0.3, res.CombinedScore, 1e-9)
	}
	assert.Equal(t, "nda-1", set.Results[0].ChunkID)
}

func TestRetriever_Retrieve_EmbedderFailureDegrades(t *testing.T) {
	emb := fixtureEmbedder()
	emb.err = errBoom
	r := NewRetriever(fixtureIndex(), emb, nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, "vector", set.FailedPath)
}

func TestRetriever_Retrieve_KeywordFailureDegrades(t *testing.T) {
	idx := &flakyIndex{Index: fixtureIndex(), keywordErr: errBoom}
	r := NewRetriever(idx, fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, "keyword", set.FailedPath)
	require.Len(t, set.Results, 2)
	assert.Equal(t, ProvenanceVector, set.Results[0].Provenance)
	assert.InDelta(t, 0.7, set.Results[0].CombinedScore, 1e-9)
}

func TestRetriever_Retrieve_BothPathsFail(t *testing.T) {
	idx := &flakyIndex{Index: fixtureIndex(), vectorErr: errBoom, keywordErr: errBoom}
	r := NewRetriever(idx, fixtureEmbedder(), nil)

	_, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRetrievalUnavailable.Code))
}

func TestRetriever_Retrieve_EmptyQuery(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)

	_, err := r.Retrieve(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)
}

func TestRetriever_Limit(t *testing.T) {
	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), &RetrieverConfig{DefaultLimit: 5, MaxLimit: 20})

	assert.Equal(t, 5, r.limit(0))
	assert.Equal(t, 5, r.limit(-3))
	assert.Equal(t, 7, r.limit(7))
	assert.Equal(t, 20, r.limit(500))
}

func TestWeights(t *testing.T) {
	v, k := weights(0, 0)
	assert.Equal(t, 0.7, v)
	assert.Equal(t, 0.3, k)

	v, k = weights(-1, 0.5)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0.5, k)

	v, k = weights(0.6, 0.4)
	assert.Equal(t, 0.6, v)
	assert.Equal(t, 0.4, k)
}

func TestSortByCombined(t *testing.T) {
	results := []SearchResult{
		result("b", "d1", 0.5, "clause"),
		result("a", "d1", 0.5, "clause"),
		result("c", "d2", 0.9, "clause"),
	}
	SortByCombined(results)
	assert.Equal(t, "c", results[0].ChunkID)
	assert.Equal(t, "a", results[1].ChunkID)
	assert.Equal(t, "b", results[2].ChunkID)
}

func TestRetriever_Retrieve_TransientIndexFailureRecovers(t *testing.T) {
	inner := &hiccupIndex{Index: fixtureIndex()}
	idx := store.NewResilientIndex(inner, "index:test", &resilience.Options{
		Retry: &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2},
	})
	r := NewRetriever(idx, fixtureEmbedder(), nil)

	set, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.False(t, set.Degraded)
	assert.Empty(t, set.FailedPath)
	require.Len(t, set.Results, 2)
	assert.Equal(t, ProvenanceHybrid, set.Results[0].Provenance)
	assert.Equal(t, 2, inner.vector)
	assert.Equal(t, 2, inner.keyword)
}

func TestRetriever_Retrieve_LegsRunSequentially(t *testing.T) {
	idx := &overlapIndex{Index: fixtureIndex()}
	r := NewRetriever(idx, fixtureEmbedder(), nil)

	_, err := r.Retrieve(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), idx.peak.Load())
}

func TestRetriever_Merge(t *testing.T) {
	type want struct {
		id         string
		combined   float64
		provenance Provenance
	}

	tests := []struct {
		name    string
		vector  []store.Candidate
		keyword []store.Candidate
		want    []want
	}{
		{
			name:    "weighted blend",
			vector:  []store.Candidate{candidate("a", 0.9)},
			keyword: []store.Candidate{candidate("a", 0.4)},
			want:    []want{{"a", 0.75, ProvenanceHybrid}},
		},
		{
			name:    "raw scores above one are clamped",
			vector:  []store.Candidate{candidate("a", 1.7)},
			keyword: []store.Candidate{candidate("a", 3)},
			want:    []want{{"a", 1.0, ProvenanceHybrid}},
		},
		{
			name:    "overlapping ids are merged once",
			vector:  []store.Candidate{candidate("a", 0.9), candidate("b", 0.8)},
			keyword: []store.Candidate{candidate("b", 0.5), candidate("c", 1.0)},
			want: []want{
				{"b", 0.71, ProvenanceHybrid},
				{"a", 0.63, ProvenanceVector},
				{"c", 0.3, ProvenanceKeyword},
			},
		},
		{
			name:    "duplicate within one path",
			vector:  []store.Candidate{candidate("a", 0.5), candidate("a", 0.5)},
			keyword: nil,
			want:    []want{{"a", 0.35, ProvenanceVector}},
		},
		{
			name:    "non-positive scores are dropped",
			vector:  []store.Candidate{candidate("a", -0.5)},
			keyword: []store.Candidate{candidate("b", 0)},
			want:    nil,
		},
	}

	r := NewRetriever(fixtureIndex(), fixtureEmbedder(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.merge(tt.vector, tt.keyword)
			require.Len(t, got, len(tt.want))

			seen := make(map[string]bool)
			for i, res := range got {
				assert.Equal(t, tt.want[i].id, res.ChunkID)
				assert.InDelta(t, tt.want[i].combined, res.CombinedScore, 1e-9)
				assert.Equal(t, tt.want[i].provenance, res.Provenance)

				assert.False(t, seen[res.ChunkID], "duplicate chunk %s", res.ChunkID)
				seen[res.ChunkID] = true
				assert.Greater(t, res.CombinedScore, 0.0)
				assert.LessOrEqual(t, res.CombinedScore, 1.0)
			}
		})
	}
}
