package perfcore

import (
	"container/list"
	"sync"
	"time"
)

// LayoutResult is the cached box-tree + computed-styles payload (spec
// §3). Citadel treats the actual box tree as an opaque blob here; the
// layout package owns its shape.
type LayoutResult struct {
	Boxes      interface{}
	ByteSize   int64
	LastAccess time.Time
}

type entry struct {
	key   Fingerprint64
	value LayoutResult
}

// Cache is a strict-LRU layout cache keyed by Fingerprint64, bounded by
// an aggregate byte cap (spec §4.5). Keyed by a fingerprint that
// includes document content, it is kept global rather than per-tab per
// the open question in spec §9(a); cross-origin leakage at the cache
// layer is prevented because the fingerprint folds in document content
// hash, not just URL.
type Cache struct {
	mu         sync.Mutex
	capBytes   int64
	usedBytes  int64
	ll         *list.List
	index      map[Fingerprint64]*list.Element

	hits, misses, evictions int64
}

// NewCache builds a Cache with the given aggregate byte cap.
func NewCache(capBytes int64) *Cache {
	return &Cache{
		capBytes: capBytes,
		ll:       list.New(),
		index:    make(map[Fingerprint64]*list.Element),
	}
}

// Get returns the cached result for fp, touching LRU order on hit.
func (c *Cache) Get(fp Fingerprint64) (LayoutResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fp]
	if !ok {
		c.misses++
		return LayoutResult{}, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	ent := el.Value.(*entry)
	ent.value.LastAccess = time.Now()
	return ent.value, true
}

// Install inserts or updates fp -> result, evicting LRU entries until
// aggregate bytes <= cap. Returns false (no error) if result alone
// exceeds the cap even with an empty cache (spec §8 boundary case).
func (c *Cache) Install(fp Fingerprint64, result LayoutResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result.ByteSize > c.capBytes {
		return false
	}

	if el, ok := c.index[fp]; ok {
		ent := el.Value.(*entry)
		c.usedBytes -= ent.value.ByteSize
		ent.value = result
		c.usedBytes += result.ByteSize
		c.ll.MoveToFront(el)
	} else {
		ent := &entry{key: fp, value: result}
		el := c.ll.PushFront(ent)
		c.index[fp] = el
		c.usedBytes += result.ByteSize
	}

	for c.usedBytes > c.capBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.evictLocked(back)
	}
	return true
}

func (c *Cache) evictLocked(el *list.Element) {
	ent := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, ent.key)
	c.usedBytes -= ent.value.ByteSize
	c.evictions++
}

// EvictIdleOlderThan removes entries whose LastAccess predates the
// cutoff (Low-pressure cleanup action, spec §4.5).
func (c *Cache) EvictIdleOlderThan(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*entry)
		if ent.value.LastAccess.Before(cutoff) {
			c.evictLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Clear evicts every entry (Critical-pressure action, spec §4.5).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Back(); el != nil; el = c.ll.Back() {
		c.evictLocked(el)
	}
}

// SetCap adjusts the aggregate byte cap, evicting immediately if the new
// cap is lower than current usage (Medium-pressure "halve image cache
// cap" action, spec §4.5).
func (c *Cache) SetCap(newCap int64) {
	c.mu.Lock()
	c.capBytes = newCap
	c.mu.Unlock()

	c.mu.Lock()
	for c.usedBytes > c.capBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.evictLocked(back)
	}
	c.mu.Unlock()
}

// Stats reports the running counters and current usage.
type Stats struct {
	Hits, Misses, Evictions int64
	UsedBytes, CapBytes     int64
	Entries                 int
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits: c.hits, Misses: c.misses, Evictions: c.evictions,
		UsedBytes: c.usedBytes, CapBytes: c.capBytes, Entries: c.ll.Len(),
	}
}
