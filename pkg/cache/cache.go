// Package cache provides generic in-process caches.
package cache

import "time"

// Cache defines the basic interface for a generic cache
type Cache[K comparable, V any] interface {
	// Set adds or replaces an item in the cache
	Set(key K, value V)
	// Get retrieves an item from the cache
	Get(key K) (V, bool)
	// Del removes an item from the cache
	Del(key K)
	// Len returns the number of items held, including not yet evicted stale ones
	Len() int
	// Clear removes all items from the cache
	Clear()
}

// Clock returns the current time. Tests substitute a fake clock.
type Clock func() time.Time
