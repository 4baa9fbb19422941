package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/pkg/errors"
)

func TestToolKinds_Complete(t *testing.T) {
	kinds := ToolKinds()
	require.Len(t, kinds, int(toolKindCount))
	for _, k := range kinds {
		assert.NotNil(t, toolTable[k], k.String())
		assert.NotEqual(t, "unknown", k.String())

		parsed, err := ParseToolKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.Equal(t, "unknown", ToolKind(-1).String())
	assert.Equal(t, "unknown", toolKindCount.String())
}

func TestParseToolKind(t *testing.T) {
	k, err := ParseToolKind(" Search ")
	require.NoError(t, err)
	assert.Equal(t, ToolSearch, k)

	_, err = ParseToolKind("delete_everything")
	assert.ErrorIs(t, err, errors.ErrUnknownTool)
}

func TestDispatchTool_UnknownKind(t *testing.T) {
	_, err := DispatchTool(context.Background(), nil, ToolKind(99), []byte(`{}`))
	assert.ErrorIs(t, err, errors.ErrUnknownTool)
}

func TestRunTool(t *testing.T) {
	svc := NewLegalRAGService(fixtureIndex(), fixtureEmbedder(), &fakeChat{answer: "ok [SOURCE 1]"}, nil, nil, nil)
	ctx := context.Background()

	out, err := RunTool(ctx, svc, "search", []byte(`{"query":"confidential information","limit":1}`))
	require.NoError(t, err)
	set, ok := out.(*RankedResultSet)
	require.True(t, ok)
	assert.Len(t, set.Results, 1)

	out, err = RunTool(ctx, svc, "ask", []byte(`{"question":"What is Confidential Information?"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok [SOURCE 1]", out.(*RAGAnswer).Answer)

	out, err = RunTool(ctx, svc, "optimize", []byte(`{"query":"termination of the contract","mode":"performance"}`))
	require.NoError(t, err)
	assert.Equal(t, ModePerformance, out.(*OptimizedQuery).Mode)

	out, err = RunTool(ctx, svc, "analyze", []byte(`{"query":"confidential information"}`))
	require.NoError(t, err)
	assert.NotNil(t, out.(*QueryPerformance).Prediction)

	out, err = RunTool(ctx, svc, "compare", []byte(`{"document_ids":["nda","policy"],"mode":"coverage"}`))
	require.NoError(t, err)
	assert.NotNil(t, out.(*ComparisonResult).Coverage)

	out, err = RunTool(ctx, svc, "suggest", []byte(`{"partial":"confidential"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, out.([]Suggestion))
}

func TestRunTool_Errors(t *testing.T) {
	svc := NewLegalRAGService(fixtureIndex(), fixtureEmbedder(), &fakeChat{answer: "ok"}, nil, nil, nil)
	ctx := context.Background()

	_, err := RunTool(ctx, svc, "nope", []byte(`{}`))
	assert.ErrorIs(t, err, errors.ErrUnknownTool)

	_, err = RunTool(ctx, svc, "search", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = RunTool(ctx, svc, "search", []byte(`{not json`))
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = RunTool(ctx, svc, "optimize", []byte(`{"query":"x","mode":"turbo"}`))
	assert.ErrorIs(t, err, errors.ErrInvalidMode)

	_, err = RunTool(ctx, svc, "compare", []byte(`{"document_ids":["nda"]}`))
	assert.ErrorIs(t, err, errors.ErrTooFewDocuments)
}
