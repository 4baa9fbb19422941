package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestMemoryCache_Basic(t *testing.T) {
	c := NewMemoryCache[string, int](time.Minute)

	c.Set("a", 1)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, c.Len())

	c.Del("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.Set("b", 2)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_LazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCacheWithClock[string, string](30*time.Minute, clock.Now)

	c.Set("k", "v1")

	clock.Advance(30 * time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok, "entry exactly at TTL is still fresh")
	assert.Equal(t, "v1", v)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry older than TTL is a miss")
	assert.Equal(t, 1, c.Len(), "stale entry is not swept")

	c.Set("k", "v2")
	v, ok = c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestMemoryCache_NoTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewMemoryCacheWithClock[int, int](0, clock.Now)
	c.Set(1, 1)
	clock.Advance(24 * time.Hour)
	_, ok := c.Get(1)
	assert.True(t, ok)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[string, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}
