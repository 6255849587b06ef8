package cache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClearOnFull is a map cache that drops every entry when a new key would
// exceed its capacity. Overwriting an existing key never clears.
type ClearOnFull[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	limit   int
	stats   Stats
}

// NewClearOnFull returns an empty cache holding at most limit entries.
func NewClearOnFull[K comparable, V any](limit int) *ClearOnFull[K, V] {
	return &ClearOnFull[K, V]{
		entries: make(map[K]V),
		limit:   limit,
	}
}

func (c *ClearOnFull[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

func (c *ClearOnFull[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.limit > 0 && len(c.entries) >= c.limit {
		c.stats.Evictions += uint64(len(c.entries))
		clear(c.entries)
	}
	c.entries[key] = value
}

func (c *ClearOnFull[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ClearOnFull[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// LRU wraps golang-lru with hit and miss counters.
type LRU[K comparable, V any] struct {
	inner     *lru.Cache[K, V]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewLRU returns an LRU cache holding at most size entries.
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	c := &LRU[K, V]{}
	inner, err := lru.NewWithEvict[K, V](size, func(K, V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *LRU[K, V]) Put(key K, value V) {
	c.inner.Add(key, value)
}

func (c *LRU[K, V]) Len() int { return c.inner.Len() }

func (c *LRU[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.inner.Len(),
	}
}

// Noop never stores anything.
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[K, V]) Put(K, V) {}
func (Noop[K, V]) Len() int { return 0 }
func (Noop[K, V]) Stats() Stats { return Stats{} }

var (
	_ Cache[RequestKey, int] = (*ClearOnFull[RequestKey, int])(nil)
	_ Cache[RequestKey, int] = (*LRU[RequestKey, int])(nil)
	_ Cache[RequestKey, int] = Noop[RequestKey, int]{}
)
