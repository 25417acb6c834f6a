// Package astcache provides an in-memory, content-hash-keyed cache of
// parse results so repeated passes over unchanged files skip re-parsing.
// Entries are evicted by LRU order and TTL. Eviction only drops the
// cache's own reference: a result already handed to a worker stays
// valid because results are never mutated after construction.
package astcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
)

// ParseFunc parses a source unit on cache miss.
type ParseFunc func(ctx context.Context, unit models.SourceUnit) (*parser.Result, error)

// Stats reports cache effectiveness.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type entry struct {
	hash   string
	result *parser.Result
	added  time.Time
}

type call struct {
	done chan struct{}
	res  *parser.Result
	err  error
}

// Cache is a bounded LRU+TTL cache keyed by BLAKE3 content hash.
// It is safe for concurrent use. A capacity of zero disables storage;
// lookups then always parse.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	inflight map[string]*call
	stats    Stats
}

// New creates a cache holding at most capacity parse results, each for
// at most ttl. A non-positive ttl means entries never expire.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]*call),
	}
}

// GetOrParse returns the cached result for the unit's content hash, or
// parses and inserts on miss. The second return value reports whether
// the result came from cache. Concurrent misses for the same hash share
// a single parse.
func (c *Cache) GetOrParse(ctx context.Context, unit models.SourceUnit, parse ParseFunc) (*parser.Result, bool, error) {
	c.mu.Lock()

	if el, ok := c.entries[unit.Hash]; ok {
		ent := el.Value.(*entry)
		if c.ttl <= 0 || time.Since(ent.added) < c.ttl {
			c.order.MoveToFront(el)
			c.stats.Hits++
			res := ent.result
			c.mu.Unlock()
			return res, true, nil
		}
		c.removeElement(el)
	}

	if cl, ok := c.inflight[unit.Hash]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		select {
		case <-cl.done:
			if cl.err != nil {
				return nil, false, cl.err
			}
			return cl.res, true, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight[unit.Hash] = cl
	c.stats.Misses++
	c.mu.Unlock()

	res, err := parse(ctx, unit)
	cl.res, cl.err = res, err
	close(cl.done)

	c.mu.Lock()
	delete(c.inflight, unit.Hash)
	if err == nil && c.capacity > 0 {
		c.insert(unit.Hash, res)
	}
	c.mu.Unlock()

	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

// Get returns the cached result for a content hash without parsing.
func (c *Cache) Get(hash string) (*parser.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if c.ttl > 0 && time.Since(ent.added) >= c.ttl {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return ent.result, true
}

// Invalidate drops the entry for a content hash, if present.
func (c *Cache) Invalidate(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[hash]; ok {
		c.removeElement(el)
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.order.Len()
	return s
}

// insert adds an entry and evicts from the LRU tail past capacity.
// Callers must hold c.mu.
func (c *Cache) insert(hash string, res *parser.Result) {
	if el, ok := c.entries[hash]; ok {
		ent := el.Value.(*entry)
		ent.result = res
		ent.added = time.Now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{hash: hash, result: res, added: time.Now()})
	c.entries[hash] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

// removeElement drops one entry and counts the eviction.
// Callers must hold c.mu.
func (c *Cache) removeElement(el *list.Element) {
	ent := el.Value.(*entry)
	delete(c.entries, ent.hash)
	c.order.Remove(el)
	c.stats.Evictions++
}
