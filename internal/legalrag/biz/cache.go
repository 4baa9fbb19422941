package biz

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gowebpki/jcs"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/cache"
)

// ResultCache 检索结果缓存。实现必须支持并发调用，同一键后写覆盖先写。
// 缓存故障不应影响检索，实现内部记录日志并按未命中处理。
type ResultCache interface {
	Get(ctx context.Context, key string) (*RankedResultSet, bool)
	Put(ctx context.Context, key string, value *RankedResultSet)
}

// cacheFilters 参与缓存键计算的过滤条件，规范化后按 JCS 序列化。
type cacheFilters struct {
	DocumentIDs        []string `json:"document_ids"`
	ExcludeDocumentIDs []string `json:"exclude_document_ids"`
	ChunkTypes         []string `json:"chunk_types"`
	Threshold          *float64 `json:"threshold"`
	Limit              int      `json:"limit"`
	ExpansionTerms     []string `json:"expansion_terms"`
}

// CacheKey 计算查询的缓存键：sha256(规范化文本 + "|" + 规范化过滤条件)。
// 过滤条件中的集合先排序，因此顺序不同的等价查询得到相同的键。
func CacheKey(q Query) string {
	f := cacheFilters{
		DocumentIDs:        sortedSet(q.DocumentIDs, false),
		ExcludeDocumentIDs: sortedSet(q.ExcludeDocumentIDs, false),
		ChunkTypes:         sortedSet(q.ChunkTypes, true),
		Threshold:          q.Threshold,
		Limit:              q.Limit,
		ExpansionTerms:     sortedSet(q.ExpansionTerms, true),
	}

	raw, err := sonic.Marshal(f)
	if err != nil {
		logger.Warnw("failed to encode cache filters", "error", err.Error())
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	return textutil.HashString(textutil.NormalizeQuery(q.Text) + "|" + string(canonical))
}

func sortedSet(items []string, lower bool) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if lower {
			it = strings.ToLower(it)
		}
		if it != "" {
			out = append(out, it)
		}
	}
	sort.Strings(out)
	return textutil.UniqueStrings(out)
}

// NopResultCache 不缓存任何内容。
type NopResultCache struct{}

func (NopResultCache) Get(context.Context, string) (*RankedResultSet, bool) { return nil, false }
func (NopResultCache) Put(context.Context, string, *RankedResultSet)        {}

// MemoryResultCache 进程内缓存，过期在读取时惰性判断。
type MemoryResultCache struct {
	c *cache.MemoryCache[string, *RankedResultSet]
}

// NewMemoryResultCache 创建进程内缓存。
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	return &MemoryResultCache{c: cache.NewMemoryCache[string, *RankedResultSet](ttl)}
}

// NewMemoryResultCacheWithClock 创建使用指定时钟的进程内缓存，用于测试。
func NewMemoryResultCacheWithClock(ttl time.Duration, now cache.Clock) *MemoryResultCache {
	return &MemoryResultCache{c: cache.NewMemoryCacheWithClock[string, *RankedResultSet](ttl, now)}
}

func (m *MemoryResultCache) Get(_ context.Context, key string) (*RankedResultSet, bool) {
	return m.c.Get(key)
}

func (m *MemoryResultCache) Put(_ context.Context, key string, value *RankedResultSet) {
	m.c.Set(key, value)
}

// Len 返回缓存条目数（含未清理的过期条目）。
func (m *MemoryResultCache) Len() int {
	return m.c.Len()
}

// RedisResultCache 基于 Redis 的共享缓存。
// 条目同时设置 Redis 过期时间并记录写入时间，读取时再次校验 TTL。
type RedisResultCache struct {
	client    *goredis.Client
	ttl       time.Duration
	keyPrefix string
	now       cache.Clock
}

var errEmptyEnvelope = errors.New("cache envelope has no value")

type cacheEnvelope struct {
	StoredAt time.Time        `json:"stored_at"`
	Value    *RankedResultSet `json:"value"`
}

// NewRedisResultCache 创建 Redis 缓存。
func NewRedisResultCache(client *goredis.Client, ttl time.Duration, keyPrefix string) *RedisResultCache {
	if keyPrefix == "" {
		keyPrefix = "legal-rag:search:"
	}
	return &RedisResultCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *RedisResultCache) Get(ctx context.Context, key string) (*RankedResultSet, bool) {
	if r.client == nil {
		return nil, false
	}
	redisKey := r.keyPrefix + key

	data, err := r.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from cache", "error", err.Error(), "key", redisKey)
		}
		return nil, false
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		logger.Warnw("failed to decode cached result", "error", err.Error(), "key", redisKey)
		// 删除损坏的缓存
		_ = r.client.Del(ctx, redisKey).Err()
		return nil, false
	}
	if r.ttl > 0 && r.now().Sub(env.StoredAt) > r.ttl {
		return nil, false
	}

	logger.Debugw("cache hit", "key", redisKey)
	return env.Value, true
}

func (r *RedisResultCache) Put(ctx context.Context, key string, value *RankedResultSet) {
	if r.client == nil || value == nil {
		return
	}
	redisKey := r.keyPrefix + key

	data, err := encodeEnvelope(cacheEnvelope{StoredAt: r.now(), Value: value})
	if err != nil {
		logger.Warnw("failed to encode result for caching", "error", err.Error())
		return
	}
	if err := r.client.Set(ctx, redisKey, data, r.ttl).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", redisKey)
	}
}

// Clear 删除所有带前缀的缓存键。
func (r *RedisResultCache) Clear(ctx context.Context) (int, error) {
	if r.client == nil {
		return 0, nil
	}
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func encodeEnvelope(env cacheEnvelope) ([]byte, error) {
	return sonic.Marshal(env)
}

func decodeEnvelope(data []byte) (*cacheEnvelope, error) {
	var env cacheEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Value == nil {
		return nil, errEmptyEnvelope
	}
	return &env, nil
}
