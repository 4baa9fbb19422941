package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/errors"
)

type brokenChunksIndex struct {
	store.Index
}

func (brokenChunksIndex) DocumentChunks(context.Context, string) ([]*store.Chunk, error) {
	return nil, errBoom
}

// countingChunksIndex 统计 DocumentChunks 调用次数。
type countingChunksIndex struct {
	store.Index
	calls int
}

func (c *countingChunksIndex) DocumentChunks(ctx context.Context, id string) ([]*store.Chunk, error) {
	c.calls++
	return c.Index.DocumentChunks(ctx, id)
}

// singleOccurrenceConfig 让只出现一次的词也计入显著词集合，适用于很短的测试文档。
func singleOccurrenceConfig() *ComparatorConfig {
	cfg := DefaultComparatorConfig()
	cfg.MinTermFrequency = 1
	return cfg
}

func comparisonIndex() *store.MemoryIndex {
	return store.NewMemoryIndex(
		&store.Chunk{ID: "x-1", DocumentID: "x", Position: 0, Content: "apple banana", Concepts: []string{ConceptPayment, ConceptObligations}},
		&store.Chunk{ID: "x-2", DocumentID: "x", Position: 1, Content: "cherry", Concepts: []string{ConceptPayment, "custom_tag"}},
		&store.Chunk{ID: "y-1", DocumentID: "y", Position: 0, Content: "apple banana durian"},
		&store.Chunk{ID: "z-1", DocumentID: "z", Position: 0, Content: "kiwi lemon mango", Concepts: []string{ConceptTermination}},
	)
}

func TestParseCompareMode(t *testing.T) {
	m, err := ParseCompareMode("")
	require.NoError(t, err)
	assert.Equal(t, CompareSimilarity, m)

	m, err = ParseCompareMode("Coverage")
	require.NoError(t, err)
	assert.Equal(t, CompareCoverage, m)

	_, err = ParseCompareMode("overlap")
	assert.ErrorIs(t, err, errors.ErrInvalidMode)
}

func TestComparator_Similarity(t *testing.T) {
	c := NewComparator(comparisonIndex(), singleOccurrenceConfig())

	res, err := c.Compare(context.Background(), []string{"y", "x", "z"}, CompareSimilarity)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "z"}, res.DocumentIDs)
	require.Len(t, res.Similarities, 1)

	pair := res.Similarities[0]
	assert.Equal(t, "x", pair.DocumentA)
	assert.Equal(t, "y", pair.DocumentB)
	assert.InDelta(t, 0.5, pair.Similarity, 1e-9)
	assert.Equal(t, []string{"apple", "banana"}, pair.SharedTerms)
	assert.Nil(t, res.Differences)
	assert.Nil(t, res.Coverage)
}

func TestComparator_Difference(t *testing.T) {
	c := NewComparator(comparisonIndex(), singleOccurrenceConfig())

	res, err := c.Compare(context.Background(), []string{"x", "y", "z"}, CompareDifference)
	require.NoError(t, err)
	require.Len(t, res.Differences, 3)

	assert.Equal(t, DocumentDifference{DocumentID: "x", UniqueTerms: []string{"cherry"}, Uniqueness: 1.0 / 3}, res.Differences[0])
	assert.Equal(t, []string{"durian"}, res.Differences[1].UniqueTerms)
	assert.Equal(t, []string{"kiwi", "lemon", "mango"}, res.Differences[2].UniqueTerms)
	assert.InDelta(t, 1.0, res.Differences[2].Uniqueness, 1e-9)
}

func TestComparator_Coverage(t *testing.T) {
	c := NewComparator(comparisonIndex(), nil)

	res, err := c.Compare(context.Background(), []string{"x", "y", "z"}, CompareCoverage)
	require.NoError(t, err)
	require.NotNil(t, res.Coverage)
	assert.Equal(t, ConceptNames(), res.Coverage.Concepts)

	x := res.Coverage.Rows["x"]
	assert.Len(t, x, len(ConceptNames()))
	assert.InDelta(t, 2.0/3, x[ConceptPayment], 1e-9)
	assert.InDelta(t, 1.0/3, x[ConceptObligations], 1e-9)
	assert.NotContains(t, x, "custom_tag")

	for _, v := range res.Coverage.Rows["y"] {
		assert.Zero(t, v)
	}
	assert.InDelta(t, 1.0, res.Coverage.Rows["z"][ConceptTermination], 1e-9)

	for id, row := range res.Coverage.Rows {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if id != "y" {
			assert.InDelta(t, 1.0, sum, 1e-9, id)
		}
	}
}

func TestComparator_TooFewDocuments(t *testing.T) {
	c := NewComparator(comparisonIndex(), nil)

	_, err := c.Compare(context.Background(), []string{"x", "missing"}, CompareSimilarity)
	assert.ErrorIs(t, err, errors.ErrTooFewDocuments)

	_, err = c.Compare(context.Background(), []string{"x", " x ", "x"}, CompareSimilarity)
	assert.ErrorIs(t, err, errors.ErrTooFewDocuments)

	_, err = c.Compare(context.Background(), nil, CompareSimilarity)
	assert.ErrorIs(t, err, errors.ErrTooFewDocuments)
}

func TestComparator_IndexFailure(t *testing.T) {
	c := NewComparator(brokenChunksIndex{Index: comparisonIndex()}, nil)

	_, err := c.Compare(context.Background(), []string{"x", "y"}, CompareSimilarity)
	assert.ErrorIs(t, err, errors.ErrRetrievalUnavailable)
}

func TestComparator_Fixtures(t *testing.T) {
	c := NewComparator(fixtureIndex(), nil)

	res, err := c.Compare(context.Background(), []string{"nda", "msa", "lease", "policy"}, CompareCoverage)
	require.NoError(t, err)
	assert.Len(t, res.Coverage.Rows, 4)
	assert.InDelta(t, 0.5, res.Coverage.Rows["nda"][ConceptConfidentiality], 1e-9)
}

func TestComparator_RejectsBeforeIndex(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		mode    CompareMode
		wantErr *errors.Errno
	}{
		{"single id", []string{"x"}, CompareSimilarity, errors.ErrTooFewDocuments},
		{"duplicate ids", []string{"x", " x ", "x"}, CompareDifference, errors.ErrTooFewDocuments},
		{"blank ids", []string{"", "  "}, CompareCoverage, errors.ErrTooFewDocuments},
		{"unknown mode", []string{"x", "y"}, CompareMode("bogus"), errors.ErrInvalidMode},
		{"empty mode", []string{"x", "y"}, CompareMode(""), errors.ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &countingChunksIndex{Index: comparisonIndex()}
			c := NewComparator(idx, nil)

			_, err := c.Compare(context.Background(), tt.ids, tt.mode)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, idx.calls)
		})
	}
}

func TestComparator_SimilaritySymmetric(t *testing.T) {
	c := NewComparator(comparisonIndex(), singleOccurrenceConfig())
	ctx := context.Background()

	ab, err := c.Compare(ctx, []string{"x", "y"}, CompareSimilarity)
	require.NoError(t, err)
	ba, err := c.Compare(ctx, []string{"y", "x"}, CompareSimilarity)
	require.NoError(t, err)

	require.Len(t, ab.Similarities, 1)
	assert.Equal(t, ab.Similarities, ba.Similarities)
	assert.Equal(t, []string{"x", "y"}, ab.DocumentIDs)
	assert.Equal(t, []string{"y", "x"}, ba.DocumentIDs)
}

func TestComparator_DefaultFrequencyThreshold(t *testing.T) {
	idx := store.NewMemoryIndex(
		&store.Chunk{ID: "p-1", DocumentID: "p", Content: "indemnity indemnity waiver"},
		&store.Chunk{ID: "q-1", DocumentID: "q", Content: "indemnity indemnity indemnity notice notice"},
	)
	c := NewComparator(idx, nil)
	assert.Equal(t, 2, DefaultComparatorConfig().MinTermFrequency)

	res, err := c.Compare(context.Background(), []string{"p", "q"}, CompareSimilarity)
	require.NoError(t, err)
	require.Len(t, res.Similarities, 1)
	assert.InDelta(t, 0.5, res.Similarities[0].Similarity, 1e-9)
	assert.Equal(t, []string{"indemnity"}, res.Similarities[0].SharedTerms)

	res, err = c.Compare(context.Background(), []string{"p", "q"}, CompareDifference)
	require.NoError(t, err)
	assert.Empty(t, res.Differences[0].UniqueTerms)
	assert.Equal(t, []string{"notice"}, res.Differences[1].UniqueTerms)
}
