package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Cacheable interface {
	CacheKeys() []string
}

// MultiIndexCache indexes each item under all of its cache keys. Every
// invalidation bumps a generation counter so that values loaded before an
// invalidation are not added back afterwards.
type MultiIndexCache[V Cacheable] struct {
	cache      *expirable.LRU[string, V]
	mu         sync.RWMutex
	generation uint64
}

func NewMultiIndexCache[V Cacheable](size int, ttl time.Duration) *MultiIndexCache[V] {
	cache := expirable.NewLRU[string, V](size, nil, ttl)
	return &MultiIndexCache[V]{
		cache: cache,
	}
}

func (c *MultiIndexCache[V]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.generation
}

// Add stores the item unless the cache was invalidated since generation.
func (c *MultiIndexCache[V]) Add(item V, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		return false
	}

	keys := item.CacheKeys()
	for _, key := range keys {
		c.cache.Add(key, item)
	}

	return true
}

func (c *MultiIndexCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache.Get(key)
}

func (c *MultiIndexCache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++

	val, ok := c.cache.Peek(key)
	if !ok {
		return
	}

	allKeys := val.CacheKeys()

	for _, k := range allKeys {
		c.cache.Remove(k)
	}
}

func (c *MultiIndexCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.cache.Purge()
}

func (c *MultiIndexCache[V]) Len() int {
	return c.cache.Len()
}
