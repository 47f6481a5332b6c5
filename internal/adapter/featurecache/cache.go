// Package featurecache memoizes EO feature lookups per target timestamp.
package featurecache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// CachedLookup wraps a FeatureLookup with an in-memory LRU cache keyed by
// the target instant. The feature store is append-only between passes, so
// the pipeline calls Reset at the start of every pass.
type CachedLookup struct {
	inner   domain.FeatureLookup
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a lookup. metrics may be nil.
func NewCachedLookup(inner domain.FeatureLookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// LookupFeatures returns the cached aggregate for target, delegating on a miss.
func (c *CachedLookup) LookupFeatures(ctx context.Context, target time.Time) (domain.EOFeature, error) {
	key := keyFor(target)
	if f, ok := c.cache.get(key); ok {
		c.observe("hit")
		return f, nil
	}
	c.observe("miss")

	f, err := c.inner.LookupFeatures(ctx, target)
	if err != nil {
		return f, err
	}
	c.cache.put(key, f)
	return f, nil
}

// Reset drops every cached entry.
func (c *CachedLookup) Reset() {
	c.cache.clear()
}

// Len reports the number of cached entries.
func (c *CachedLookup) Len() int {
	return c.cache.len()
}

func (c *CachedLookup) observe(result string) {
	if c.metrics != nil {
		c.metrics.FeatureCache.WithLabelValues(result).Inc()
	}
}

// cacheKey identifies a lookup target by instant, independent of location.
// whole marks the zero time, the whole-store aggregate, so it never collides
// with a real instant such as the Unix epoch.
type cacheKey struct {
	whole bool
	sec   int64
	nsec  int
}

func keyFor(t time.Time) cacheKey {
	if t.IsZero() {
		return cacheKey{whole: true}
	}
	return cacheKey{sec: t.Unix(), nsec: t.Nanosecond()}
}

// lruCache is a simple thread-safe LRU cache for aggregated EO features.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[cacheKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   cacheKey
	value domain.EOFeature
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]*entry),
	}
}

func (c *lruCache) get(key cacheKey) (domain.EOFeature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.EOFeature{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key cacheKey, value domain.EOFeature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	c.head, c.tail = nil, nil
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
