package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPGFilter(t *testing.T) {
	where, args := buildPGFilter(Filter{}, []any{"q"})
	assert.Empty(t, where)
	assert.Len(t, args, 1)

	where, args = buildPGFilter(Filter{
		DocumentIDs:        []string{"d1", "d2"},
		ChunkTypes:         []string{"Definition"},
		ExcludeDocumentIDs: []string{"d3"},
	}, []any{"v", 0.7})
	assert.Equal(t, " AND document_id = ANY($3) AND lower(chunk_type) = ANY($4) AND NOT (document_id = ANY($5))", where)
	assert.Equal(t, []any{"v", 0.7, []string{"d1", "d2"}, []string{"definition"}, []string{"d3"}}, args)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.5,-1,0.25]", VectorLiteral([]float32{0.5, -1, 0.25}))
}

func TestNewPGIndexSanitizesTable(t *testing.T) {
	idx := NewPGIndex(nil, `chunks"; drop`)
	assert.Equal(t, `"chunks""; drop"`, idx.table)
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 7, normalizeLimit(7))
}
