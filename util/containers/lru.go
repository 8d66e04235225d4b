// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package containers

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LruCache is a thread safe LRU cache. A zero or negative size disables caching instead of making
// it unlimited.
type LruCache[K comparable, V any] struct {
	mutex sync.Mutex
	inner *simplelru.LRU[K, V]
}

// NewLruCacheWithOnEvict creates a cache holding up to size entries. onEvict may be nil.
func NewLruCacheWithOnEvict[K comparable, V any](size int, onEvict func(K, V)) *LruCache[K, V] {
	c := &LruCache[K, V]{}
	if size > 0 {
		// only fails for non-positive sizes
		c.inner, _ = simplelru.NewLRU[K, V](size, onEvict)
	}
	return c
}

// GetOrCreate returns the cached value for key, or builds, caches and returns a new one. The bool
// reports a cache hit. Build errors are returned and nothing is cached.
func (c *LruCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, bool, error) {
	if c.inner == nil {
		value, err := create()
		return value, false, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if value, ok := c.inner.Get(key); ok {
		return value, true, nil
	}
	value, err := create()
	if err != nil {
		return value, false, err
	}
	c.inner.Add(key, value)
	return value, false, nil
}

func (c *LruCache[K, V]) Len() int {
	if c.inner == nil {
		return 0
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.inner.Len()
}

