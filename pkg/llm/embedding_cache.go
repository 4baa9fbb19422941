package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/legal-rag/pkg/cache"
)

// EmbeddingCacheConfig configures the embedding cache.
type EmbeddingCacheConfig struct {
	// TTL is how long a vector stays cached. Vectors of the same text are
	// stable for a given model, so this is usually long.
	TTL time.Duration
	// KeyPrefix namespaces redis keys. The model name is appended so that
	// switching models never serves stale vectors.
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig returns a 24h cache.
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		TTL:       24 * time.Hour,
		KeyPrefix: "legal-rag:emb:",
	}
}

// CachedEmbeddingProvider memoizes vectors by text hash, in redis when a
// client is given and in process otherwise. Cache failures fall through to
// the wrapped provider.
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    *goredis.Client
	local    *cache.MemoryCache[string, []float32]
	config   *EmbeddingCacheConfig
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider wraps provider. rdb may be nil.
func NewCachedEmbeddingProvider(provider EmbeddingProvider, rdb *goredis.Client, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	c := &CachedEmbeddingProvider{
		provider: provider,
		redis:    rdb,
		config:   config,
	}
	if rdb == nil {
		c.local = cache.NewMemoryCache[string, []float32](config.TTL)
	}
	return c
}

func (c *CachedEmbeddingProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + c.provider.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbeddingProvider) get(ctx context.Context, key string) ([]float32, bool) {
	if c.local != nil {
		return c.local.Get(key)
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("embedding cache read failed", "error", err.Error())
		}
		return nil, false
	}
	var vec []float32
	if err := sonic.Unmarshal(data, &vec); err != nil {
		logger.Warnw("corrupt cached embedding, deleting", "key", key, "error", err.Error())
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbeddingProvider) set(ctx context.Context, key string, vec []float32) {
	if c.local != nil {
		c.local.Set(key, vec)
		return
	}

	data, err := sonic.Marshal(vec)
	if err != nil {
		logger.Warnw("failed to encode embedding for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("embedding cache write failed", "key", key, "error", err.Error())
	}
}

// EmbedSingle implements EmbeddingProvider.
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.get(ctx, key); ok {
		logger.Debugw("embedding cache hit", "text_length", len(text))
		return vec, nil
	}

	vec, err := c.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, vec)
	return vec, nil
}

// Embed implements EmbeddingProvider. Only the missing texts reach the
// wrapped provider, in one call.
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		if vec, ok := c.get(ctx, c.key(text)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, errors.New("embedding provider returned a mismatched number of vectors")
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.set(ctx, c.key(missTexts[j]), vecs[j])
	}
	logger.Debugw("embedding cache batch", "total", len(texts), "misses", len(missTexts))
	return out, nil
}

// Name returns the wrapped provider name.
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name()
}
