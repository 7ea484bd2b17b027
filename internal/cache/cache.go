// Package cache implements the process-wide, size-bounded LRU
// response cache of spec.md §4.5, the Go analogue of cache.c: a
// doubly linked recency list plus a URL index, guarded by a single
// mutex, with an O(1) lookup added per spec.md §9's suggestion
// ("Implementations SHOULD add a hash index").
package cache

import (
	"container/list"
	"sync"
)

// Artifact is a cached response: headers followed by body,
// contiguous, exactly as the fetcher assembled it (spec.md §3).
type Artifact struct {
	Bytes []byte
	H     int // header byte count, including the terminating blank line
	B     int // body byte count
}

// Cache is the bounded, concurrent LRU response cache. The zero value
// is not usable; construct with New.
type Cache struct {
	mu sync.Mutex

	maxObjectSize int
	maxCacheSize  int

	index map[string]*list.Element // url -> element holding *entry
	order *list.List               // front = MRU, back = LRU
	total int                      // sum of B across all entries

	metrics *Metrics
}

type entry struct {
	url      string
	artifact *Artifact
}

// New constructs an empty Cache bounded by maxObjectSize (per-object
// body cap) and maxCacheSize (aggregate body cap).
func New(maxObjectSize, maxCacheSize int, metrics *Metrics) *Cache {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Cache{
		maxObjectSize: maxObjectSize,
		maxCacheSize:  maxCacheSize,
		index:         make(map[string]*list.Element),
		order:         list.New(),
		metrics:       metrics,
	}
}

// MaxObjectSize returns the per-object body cap.
func (c *Cache) MaxObjectSize() int { return c.maxObjectSize }

// Lookup returns the artifact stored for url and promotes it to MRU,
// or reports found=false. The whole operation is atomic: spec.md §8's
// "lookup promotes" law holds even under concurrent lookups/inserts.
func (c *Cache) Lookup(url string) (artifact *Artifact, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[url]
	if !ok {
		c.metrics.misses.Inc()
		return nil, false
	}
	c.order.MoveToFront(el)
	c.metrics.hits.Inc()
	return el.Value.(*entry).artifact, true
}

// Insert admits artifact under url, evicting LRU entries until it
// fits. It does not deduplicate by URL (spec.md §4.5's accepted
// duplicate-URL race): two concurrent miss-then-insert calls for the
// same URL both succeed and both occupy list slots, the older one
// simply ages toward eviction like any other entry.
//
// Insert is a no-op (and reports inserted=false) when B exceeds the
// per-object cap; the caller owns releasing that artifact itself.
func (c *Cache) Insert(url string, artifact *Artifact) (inserted bool) {
	if artifact.B > c.maxObjectSize {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.total+artifact.B > c.maxCacheSize && c.order.Len() > 0 {
		c.evictLocked()
	}

	el := c.order.PushFront(&entry{url: url, artifact: artifact})
	c.index[url] = el
	c.total += artifact.B
	c.metrics.insertions.Inc()
	c.metrics.entries.Set(float64(c.order.Len()))
	c.metrics.bytes.Set(float64(c.total))
	return true
}

// evictLocked removes the LRU entry. The caller must hold c.mu and
// must not call this when the list is empty.
func (c *Cache) evictLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.order.Remove(back)
	// A newer duplicate of the same URL may own the index slot; leave
	// it reachable.
	if c.index[e.url] == back {
		delete(c.index, e.url)
	}
	c.total -= e.artifact.B
	c.metrics.evictions.Inc()
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// TotalBytes reports the current summed body-byte total across all
// entries.
func (c *Cache) TotalBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
