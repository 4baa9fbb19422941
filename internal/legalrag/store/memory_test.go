package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/pkg/llm/local"
)

func testChunks() []*Chunk {
	return []*Chunk{
		{ID: "c1", DocumentID: "d1", DocumentTitle: "MSA", ChunkType: "definition", Position: 1, Content: "Confidential Information means any non-public information disclosed by a party.", Embedding: []float32{1, 0, 0}},
		{ID: "c2", DocumentID: "d1", DocumentTitle: "MSA", ChunkType: "clause", Position: 0, Content: "Either party may terminate this agreement upon thirty days notice.", Embedding: []float32{0.8, 0.6, 0}},
		{ID: "c3", DocumentID: "d2", DocumentTitle: "NDA", ChunkType: "clause", Position: 0, Content: "The recipient shall protect confidential information.", Embedding: []float32{0, 1, 0}},
	}
}

func TestMemoryVectorQuery(t *testing.T) {
	idx := NewMemoryIndex(testChunks()...)
	ctx := context.Background()

	got, err := idx.VectorQuery(ctx, []float32{1, 0, 0}, 0.7, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
	assert.Equal(t, "c2", got[1].Chunk.ID)
	assert.InDelta(t, 0.8, got[1].Score, 1e-6)

	got, err = idx.VectorQuery(ctx, []float32{1, 0, 0}, 0.7, Filter{ChunkTypes: []string{"CLAUSE"}}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].Chunk.ID)

	got, err = idx.VectorQuery(ctx, []float32{1, 0, 0}, 0, Filter{}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryKeywordQuery(t *testing.T) {
	idx := NewMemoryIndex(testChunks()...)
	ctx := context.Background()

	got, err := idx.KeywordQuery(ctx, "confidential information", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].Chunk.ID)
	assert.Equal(t, "c3", got[1].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)

	got, err = idx.KeywordQuery(ctx, "confidential information", Filter{ExcludeDocumentIDs: []string{"d1"}}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d2", got[0].Chunk.DocumentID)

	got, err = idx.KeywordQuery(ctx, "force majeure", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.KeywordQuery(ctx, "the of", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryDocumentChunks(t *testing.T) {
	idx := NewMemoryIndex(testChunks()...)

	chunks, err := idx.DocumentChunks(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c2", chunks[0].ID)
	assert.Equal(t, "c1", chunks[1].ID)

	chunks, err = idx.DocumentChunks(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.Equal(t, []string{"d1", "d2"}, idx.Documents())
	assert.Equal(t, 3, idx.Len())
}

func TestMemoryAddReplacesChunk(t *testing.T) {
	idx := NewMemoryIndex(testChunks()...)
	idx.Add(&Chunk{ID: "c3", DocumentID: "d3", Content: "moved"})

	chunks, err := idx.DocumentChunks(context.Background(), "d2")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, []string{"d1", "d3"}, idx.Documents())
}

func TestMemoryQueryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryIndex().KeywordQuery(ctx, "x", Filter{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	corpus := `[
		{"id": "a1", "document_id": "lease", "document_title": "Lease", "chunk_type": "clause", "page_number": 2, "content": "Rent is payable monthly in advance."},
		{"id": "a2", "document_id": "lease", "document_title": "Lease", "chunk_type": "clause", "page_number": 3, "content": "The tenant shall maintain insurance.", "embedding": [0.5, 0.5]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0o600))

	chunks, err := LoadCorpus(context.Background(), path, local.New(16, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Embedding, 16)
	assert.Equal(t, []float32{0.5, 0.5}, chunks[1].Embedding)
	assert.Equal(t, 2, chunks[0].PageNumber)
}

func TestLoadCorpusErrors(t *testing.T) {
	_, err := LoadCorpus(context.Background(), filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"content": "no id"}]`), 0o600))
	_, err = LoadCorpus(context.Background(), path, nil)
	assert.ErrorContains(t, err, "no id")
}
