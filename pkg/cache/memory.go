package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// MemoryCache implements a thread-safe in-memory cache whose entries expire a
// fixed TTL after they were written. Expiry is evaluated lazily on Get; there
// is no background sweeper. A non-positive TTL disables expiry.
type MemoryCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	ttl  time.Duration
	now  Clock
}

var _ Cache[string, int] = (*MemoryCache[string, int])(nil)

// NewMemoryCache creates a new instance of MemoryCache
func NewMemoryCache[K comparable, V any](ttl time.Duration) *MemoryCache[K, V] {
	return NewMemoryCacheWithClock[K, V](ttl, time.Now)
}

// NewMemoryCacheWithClock creates a MemoryCache that reads time from now.
func NewMemoryCacheWithClock[K comparable, V any](ttl time.Duration, now Clock) *MemoryCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
		now:  now,
	}
}

// TTL returns the configured time-to-live.
func (c *MemoryCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Set adds or replaces an item. Replacement resets its age; the last writer wins.
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{value: value, createdAt: c.now()}
}

// Get retrieves an item. An entry older than the TTL is reported as a miss
// and left in place until it is overwritten.
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Del removes an item from the cache
func (c *MemoryCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of stored entries.
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear removes all items from the cache
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}
