package schema

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// DefaultCacheLimit is the number of distinct types a Cache holds before it sweeps.
const DefaultCacheLimit = 10000

// Cache holds resolved schemas keyed by record type.
//
// Reads and inserts go through a sync.Map and per-entry atomic hit counters,
// so unrelated calls never wait on each other. When the number of entries
// reaches the limit, the next insert sweeps entries that were never hit
// and halves the counters of the survivors.
type Cache struct {
	entries  sync.Map // reflect.Type -> *cacheEntry
	count    atomic.Int64
	limit    int64
	sweeping atomic.Bool
}

type cacheEntry struct {
	value any
	hits  atomic.Int64
}

// NewCache creates a cache with the given limit. A limit <= 0 uses DefaultCacheLimit.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	return &Cache{limit: int64(limit)}
}

// Load returns the value cached for key, building it on a miss.
// A build error is returned as is and nothing is cached.
func (c *Cache) Load(key reflect.Type, build func() (any, error)) (any, error) {
	if e, ok := c.entries.Load(key); ok {
		entry := e.(*cacheEntry)
		entry.hits.Add(1)
		return entry.value, nil
	}

	value, err := build()
	if err != nil {
		return nil, err
	}

	if c.count.Load() >= c.limit {
		c.sweep()
	}

	entry := &cacheEntry{value: value}
	actual, loaded := c.entries.LoadOrStore(key, entry)
	if loaded {
		existing := actual.(*cacheEntry)
		existing.hits.Add(1)
		return existing.value, nil
	}
	c.count.Add(1)
	return value, nil
}

// sweep evicts entries with no hits and ages the rest.
// Only one goroutine sweeps at a time; others skip.
func (c *Cache) sweep() {
	if !c.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer c.sweeping.Store(false)

	c.entries.Range(func(key, value any) bool {
		entry := value.(*cacheEntry)
		for {
			hits := entry.hits.Load()
			if hits <= 0 {
				if c.entries.CompareAndDelete(key, value) {
					c.count.Add(-1)
				}
				return true
			}
			if entry.hits.CompareAndSwap(hits, hits/2) {
				return true
			}
		}
	})
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	return int(c.count.Load())
}

// Hits returns the hit counter for key and whether key is cached.
func (c *Cache) Hits(key reflect.Type) (int64, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		return 0, false
	}
	return e.(*cacheEntry).hits.Load(), true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Range(func(key, value any) bool {
		if c.entries.CompareAndDelete(key, value) {
			c.count.Add(-1)
		}
		return true
	})
}

// For returns the schema of T, resolving and caching it on first use.
func For[T Describer[T]](c *Cache) (*Schema[T], error) {
	v, err := c.Load(reflect.TypeFor[T](), func() (any, error) {
		return Describe[T]()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema[T]), nil
}
