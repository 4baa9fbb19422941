package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/pkg/errors"
)

type captureSink struct {
	mu      sync.Mutex
	records []TelemetryRecord
}

func (c *captureSink) Record(_ context.Context, rec TelemetryRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) find(op string) (TelemetryRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.Operation == op {
			return r, true
		}
	}
	return TelemetryRecord{}, false
}

func newTestService(t *testing.T, chat *fakeChat) (*LegalRAGService, *fakeEmbedder, *MemoryResultCache, *captureSink) {
	t.Helper()
	emb := fixtureEmbedder()
	cache := NewMemoryResultCache(time.Hour)
	sink := &captureSink{}
	svc := NewLegalRAGService(fixtureIndex(), emb, chat, cache, sink, nil)
	return svc, emb, cache, sink
}

func TestLegalRAGService_Search_Caches(t *testing.T) {
	svc, emb, cache, sink := newTestService(t, &fakeChat{answer: "ok"})
	ctx := context.Background()

	first, err := svc.Search(ctx, Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	calls := emb.callCount()

	second, err := svc.Search(ctx, Query{Text: "  Confidential   INFORMATION "})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, calls, emb.callCount())

	assert.Eventually(t, func() bool {
		rec, ok := sink.find("search")
		return ok && rec.ResultCount == 2
	}, time.Second, 10*time.Millisecond)
}

func TestLegalRAGService_Search_NoMatches(t *testing.T) {
	svc, _, _, sink := newTestService(t, &fakeChat{})

	set, err := svc.Search(context.Background(), Query{Text: "force majeure"})
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Empty(t, set.Results)
	assert.Zero(t, set.TotalCandidates)
	assert.False(t, set.Degraded)
	assert.True(t, set.Latency > 0)

	assert.Eventually(t, func() bool {
		rec, ok := sink.find("search")
		return ok && rec.Err == "" && rec.ResultCount == 0 && rec.Latency > 0
	}, time.Second, 10*time.Millisecond)
}

func TestLegalRAGService_Search_DegradedNotCached(t *testing.T) {
	cache := NewMemoryResultCache(time.Hour)
	idx := &flakyIndex{Index: fixtureIndex(), vectorErr: errBoom}
	svc := NewLegalRAGService(idx, fixtureEmbedder(), &fakeChat{}, cache, nil, nil)

	set, err := svc.Search(context.Background(), Query{Text: "confidential information"})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Zero(t, cache.Len())
}

func TestLegalRAGService_Search_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{})
	ctx := context.Background()
	bad := 1.5

	_, err := svc.Search(ctx, Query{Text: " "})
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)

	_, err = svc.Search(ctx, Query{Text: "x", Threshold: &bad})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.Search(ctx, Query{Text: "x", Limit: -1})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestLegalRAGService_Search_Unavailable(t *testing.T) {
	idx := &flakyIndex{Index: fixtureIndex(), vectorErr: errBoom, keywordErr: errBoom}
	sink := &captureSink{}
	svc := NewLegalRAGService(idx, fixtureEmbedder(), &fakeChat{}, nil, sink, nil)

	_, err := svc.Search(context.Background(), Query{Text: "confidential information"})
	assert.ErrorIs(t, err, errors.ErrRetrievalUnavailable)
	assert.Eventually(t, func() bool {
		rec, ok := sink.find("search")
		return ok && rec.Err != ""
	}, time.Second, 10*time.Millisecond)
}

func TestLegalRAGService_Ask(t *testing.T) {
	chat := &fakeChat{answer: "Confidential Information means any non-public information [SOURCE 1]."}
	svc, _, _, sink := newTestService(t, chat)

	ans, err := svc.Ask(context.Background(), AskRequest{Question: "What is Confidential Information?"})
	require.NoError(t, err)
	assert.Equal(t, chat.answer, ans.Answer)
	assert.Equal(t, "definition", ans.QuestionType)
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "nda-1", ans.Sources[0].Result.ChunkID)
	assert.Greater(t, ans.Sources[0].Result.RerankScore, ans.Sources[0].Result.CombinedScore)
	assert.Greater(t, ans.Confidence, 0.0)
	assert.Empty(t, ans.CrossReferences)
	assert.Contains(t, ans.LegalAnalysis.KeyConcepts, ConceptConfidentiality)

	assert.Eventually(t, func() bool {
		rec, ok := sink.find("ask")
		return ok && rec.ResultCount == 2 && rec.Confidence > 0
	}, time.Second, 10*time.Millisecond)
}

func TestLegalRAGService_Ask_CrossReferences(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{answer: "ok"})

	ans, err := svc.Ask(context.Background(), AskRequest{
		Question:               "What is Confidential Information?",
		IncludeCrossReferences: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, ans.CrossReferences)

	var ids []string
	for _, ref := range ans.CrossReferences {
		assert.NotEqual(t, "nda", ref.DocumentID)
		ids = append(ids, ref.ChunkID)
	}
	assert.Contains(t, ids, "policy-1")
}

func TestLegalRAGService_Ask_Optimized(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{answer: "ok"})

	ans, err := svc.Ask(context.Background(), AskRequest{
		Question: "How can a party terminate the agreement?",
		Optimize: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "msa", ans.Sources[0].Result.DocumentID)
}

func TestLegalRAGService_Ask_InsufficientEvidence(t *testing.T) {
	chat := &fakeChat{answer: "unused"}
	svc, _, _, _ := newTestService(t, chat)

	ans, err := svc.Ask(context.Background(), AskRequest{Question: "zebra migration patterns"})
	require.NoError(t, err)
	assert.Equal(t, InsufficientEvidenceAnswer, ans.Answer)
	assert.Zero(t, ans.Confidence)
	assert.Zero(t, chat.calls)
}

func TestLegalRAGService_Ask_Errors(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{err: errBoom})
	ctx := context.Background()

	_, err := svc.Ask(ctx, AskRequest{Question: ""})
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)

	_, err = svc.Ask(ctx, AskRequest{Question: "x", MaxResults: -1})
	assert.ErrorIs(t, err, errors.ErrValidation)

	ans, err := svc.Ask(ctx, AskRequest{Question: "What is Confidential Information?"})
	require.NoError(t, err)
	assert.NotEmpty(t, ans.Error)
	assert.Zero(t, ans.Confidence)
	assert.NotEmpty(t, ans.Sources)
}

func TestLegalRAGService_OptimizeQuery(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{})

	opt, err := svc.OptimizeQuery(context.Background(), "termination of the contract", "", ModeComprehensive)
	require.NoError(t, err)
	assert.Equal(t, ModeComprehensive, opt.Mode)
	assert.Contains(t, opt.Optimized, "(contract OR agreement")

	_, err = svc.OptimizeQuery(context.Background(), "", "", ModeLegal)
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)
}

func TestLegalRAGService_AnalyzeQueryPerformance(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{})

	perf, err := svc.AnalyzeQueryPerformance(context.Background(), "confidential information")
	require.NoError(t, err)
	require.NotNil(t, perf.Prediction)
	assert.Equal(t, 2, perf.Prediction.ResultCount)
	assert.Equal(t, "fair", perf.Prediction.Label)
	assert.NotEmpty(t, perf.Suggestions)

	idx := &flakyIndex{Index: fixtureIndex(), vectorErr: errBoom, keywordErr: errBoom}
	broken := NewLegalRAGService(idx, fixtureEmbedder(), &fakeChat{}, nil, nil, nil)
	perf, err = broken.AnalyzeQueryPerformance(context.Background(), "confidential information")
	require.NoError(t, err)
	assert.Nil(t, perf.Prediction)
	assert.NotZero(t, perf.Scores.Overall)

	_, err = svc.AnalyzeQueryPerformance(context.Background(), " ")
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)
}

func TestLegalRAGService_CompareDocuments(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{})

	res, err := svc.CompareDocuments(context.Background(), []string{"nda", "policy", "lease"}, CompareDifference)
	require.NoError(t, err)
	assert.Len(t, res.Differences, 3)

	_, err = svc.CompareDocuments(context.Background(), []string{"nda", "ghost"}, CompareSimilarity)
	assert.ErrorIs(t, err, errors.ErrTooFewDocuments)
}

func TestLegalRAGService_BatchAsk(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{answer: "ok"})

	job, err := svc.BatchAsk(context.Background(), []string{
		"What is Confidential Information?",
		"How can a party terminate the agreement?",
		"",
	}, BatchSettings{MaxParallelism: 2})
	require.NoError(t, err)
	require.Len(t, job.Items, 3)
	assert.Equal(t, ItemSucceeded, job.Items[0].Status)
	assert.Equal(t, ItemSucceeded, job.Items[1].Status)
	assert.Equal(t, ItemFailed, job.Items[2].Status)
	assert.Equal(t, 2, job.Summary.Succeeded)
	assert.NotEmpty(t, job.ID)

	_, err = svc.BatchAsk(context.Background(), nil, BatchSettings{})
	assert.ErrorIs(t, err, errors.ErrInvalidBatchSettings)
}

func TestLegalRAGService_Suggest(t *testing.T) {
	svc, _, _, _ := newTestService(t, &fakeChat{})

	got, err := svc.Suggest(context.Background(), "confidential")
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	_, err = svc.Suggest(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)
}

func TestMultiSink(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	sink := MultiSink{a, nil, failingSink{}, b}

	err := sink.Record(context.Background(), TelemetryRecord{Operation: "search"})
	assert.ErrorIs(t, err, errBoom)
	_, ok := a.find("search")
	assert.True(t, ok)
	_, ok = b.find("search")
	assert.True(t, ok)
}

type failingSink struct{}

func (failingSink) Record(context.Context, TelemetryRecord) error { return errBoom }

func TestAverageScore(t *testing.T) {
	assert.Zero(t, averageScore(nil))
	assert.InDelta(t, 0.5, averageScore([]SearchResult{
		result("a", "d", 0.4, "clause"),
		result("b", "d", 0.6, "clause"),
	}), 1e-9)
}
