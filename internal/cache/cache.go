// Package cache holds computed matrices keyed by dataset name with LRU
// eviction and an optional time to live.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/23skdu/proximity/internal/metrics"
)

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// Cache is a fixed-capacity LRU cache. A zero TTL keeps entries until they
// are evicted or deleted.
type Cache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

// New creates a cache. capacity <= 0 means 1.
func New[T any](capacity int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the live value of key and marks it most recently used.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		e := elem.Value.(*entry[T])
		if c.expired(e) {
			c.remove(elem)
		} else {
			c.lru.MoveToFront(elem)
			metrics.MatrixCacheHitsTotal.WithLabelValues(key).Inc()
			return e.value, true
		}
	}
	metrics.MatrixCacheMissesTotal.WithLabelValues(key).Inc()
	var zero T
	return zero, false
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[T])
		e.value = value
		e.expiresAt = c.expiry()
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(&entry[T]{key: key, value: value, expiresAt: c.expiry()})
	for c.lru.Len() > c.capacity {
		c.remove(c.lru.Back())
		metrics.MatrixCacheEvictionsTotal.Inc()
	}
	metrics.MatrixCacheEntries.Set(float64(c.lru.Len()))
}

// Delete drops key if present.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Len returns the number of entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear purges the cache
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.items = make(map[string]*list.Element)
	metrics.MatrixCacheEntries.Set(0)
}

func (c *Cache[T]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *Cache[T]) expired(e *entry[T]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *Cache[T]) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*entry[T]).key)
	metrics.MatrixCacheEntries.Set(float64(c.lru.Len()))
}
