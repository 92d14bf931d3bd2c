// Package cache provides a bounded LRU cache for decoded images.
package cache

import (
	"container/list"
	"sync"
)

// Stats contains cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Size       int
	MaxSize    int
	TotalBytes int64
	MaxBytes   int64
}

// Config bounds the cache. A zero limit means unlimited.
type Config[K comparable, V any] struct {
	MaxSize  int           // maximum number of entries
	MaxBytes int64         // maximum total of SizeOf over all entries
	SizeOf   func(V) int64 // required when MaxBytes is set
	OnEvict  func(key K, value V)
}

type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
}

// LRU is a thread-safe least-recently-used cache.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config[K, V]
	entries   map[K]*list.Element
	evictList *list.List
	bytes     int64
	stats     Stats
}

// New creates a cache with the given limits.
func New[K comparable, V any](config Config[K, V]) *LRU[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	if config.MaxBytes < 0 || config.SizeOf == nil {
		config.MaxBytes = 0
	}
	return &LRU[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return ent.Value.(*entry[K, V]).value, true
}

// Put stores a value, evicting the least recently used entries to stay
// within the limits. A value larger than MaxBytes on its own is not cached.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size int64
	if c.config.SizeOf != nil {
		size = c.config.SizeOf(value)
	}
	if c.config.MaxBytes > 0 && size > c.config.MaxBytes {
		return
	}

	if ent, ok := c.entries[key]; ok {
		e := ent.Value.(*entry[K, V])
		c.bytes += size - e.size
		e.value, e.size = value, size
		c.evictList.MoveToFront(ent)
	} else {
		c.entries[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value, size: size})
		c.bytes += size
	}

	for c.overLimit() {
		c.removeElement(c.evictList.Back())
		c.stats.Evictions++
	}
}

func (c *LRU[K, V]) overLimit() bool {
	if c.evictList.Len() == 0 {
		return false
	}
	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		return true
	}
	return c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes
}

// Remove removes a value from the cache.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

// Clear removes all entries without calling OnEvict.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
	c.bytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	s.TotalBytes = c.bytes
	s.MaxBytes = c.config.MaxBytes
	return s
}

func (c *LRU[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)
	c.bytes -= e.size

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// DefaultBlobBytes bounds a blob cache to what a handheld viewer comfortably
// holds in memory.
const DefaultBlobBytes = 8 << 20

// NewBlobCache returns a cache of decompressed blobs keyed by dictionary key.
func NewBlobCache(maxBytes int64) *LRU[int, []byte] {
	if maxBytes == 0 {
		maxBytes = DefaultBlobBytes
	}
	return New(Config[int, []byte]{
		MaxBytes: maxBytes,
		SizeOf:   func(b []byte) int64 { return int64(len(b)) },
	})
}
