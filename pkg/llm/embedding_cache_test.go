package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mockProvider
	calls  int
	texts  []string
	failOn string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == c.failOn {
			return nil, errors.New("provider down")
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func TestCachedEmbeddingProvider_Memory(t *testing.T) {
	inner := &countingEmbedder{mockProvider: mockProvider{name: "counting"}}
	p := NewCachedEmbeddingProvider(inner, nil, nil)
	ctx := context.Background()

	a, err := p.EmbedSingle(ctx, "termination")
	require.NoError(t, err)
	b, err := p.EmbedSingle(ctx, "termination")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", p.Name())

	vecs, err := p.Embed(ctx, []string{"termination", "indemnity", "termination"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, a, vecs[0])
	assert.Equal(t, []float32{9, 1}, vecs[1])
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"termination", "indemnity"}, inner.texts)
}

func TestCachedEmbeddingProvider_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{mockProvider: mockProvider{name: "counting"}, failOn: "breach"}
	p := NewCachedEmbeddingProvider(inner, nil, &EmbeddingCacheConfig{TTL: time.Minute, KeyPrefix: "t:"})
	ctx := context.Background()

	_, err := p.EmbedSingle(ctx, "breach")
	require.Error(t, err)

	inner.failOn = ""
	_, err = p.EmbedSingle(ctx, "breach")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbeddingProvider_Redis(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rdb.Close()
	rdb.FlushDB(ctx)

	inner := &countingEmbedder{mockProvider: mockProvider{name: "counting"}}
	p := NewCachedEmbeddingProvider(inner, rdb, &EmbeddingCacheConfig{TTL: time.Minute, KeyPrefix: "test:emb:"})

	a, err := p.EmbedSingle(ctx, "governing law")
	require.NoError(t, err)

	// A fresh wrapper over the same redis sees the cached vector.
	p2 := NewCachedEmbeddingProvider(inner, rdb, &EmbeddingCacheConfig{TTL: time.Minute, KeyPrefix: "test:emb:"})
	b, err := p2.EmbedSingle(ctx, "governing law")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
}
