// Package cache implements the keyspace trie's node cache: a bounded,
// strictly-LRU store keyed by node id, with a secondary composite index of
// (level desc, first asc) that drives Get's deepest-first search. Grounded
// on the reference store's NodeCache<BITS>.
package cache

import (
	"container/list"
	"sort"
	"sync"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
)

// entry is one cached node plus its position in the LRU recency list.
type entry struct {
	n    *node.Node
	elem *list.Element
}

// Cache is a single-mutex bounded LRU cache of trie nodes, keyed by node id
// for direct lookup and ordered by (level desc, first asc) for the
// deepest-first key search Get performs.
type Cache struct {
	mu sync.Mutex

	maxSize int
	byID    map[uint64]*entry
	order   []*node.Node // sorted by (level desc, first asc)
	lru     *list.List   // MRU at back, LRU at front

	hits, misses, inserts, updates uint64
}

// New constructs an empty cache bounded to maxSize nodes.
func New(maxSize int) *Cache {
	return &Cache{
		maxSize: maxSize,
		byID:    make(map[uint64]*entry),
		lru:     list.New(),
	}
}

// SetMaxSize changes the cache's bound, evicting immediately if the new
// bound is smaller than the current population.
func (c *Cache) SetMaxSize(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.evictLocked()
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[uint64]*entry)
	c.order = nil
	c.lru = list.New()
}

// less orders by (level desc, first asc), matching CacheKey::operator< in
// the reference implementation.
func less(a, b *node.Node) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	return a.First.Less(b.First)
}

// Add inserts or updates n in the cache, marking it most-recently-used, and
// evicts the least-recently-used entry if the cache is now over its bound.
func (c *Cache) Add(n *node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byID[n.ID]; ok {
		c.removeOrderedLocked(e.n)
		e.n = n
		c.lru.MoveToBack(e.elem)
		c.insertOrderedLocked(n)
		c.updates++
		return
	}

	elem := c.lru.PushBack(n.ID)
	e := &entry{n: n, elem: elem}
	c.byID[n.ID] = e
	c.insertOrderedLocked(n)
	c.inserts++
	c.evictLocked()
}

func (c *Cache) insertOrderedLocked(n *node.Node) {
	i := sort.Search(len(c.order), func(i int) bool { return !less(c.order[i], n) })
	c.order = append(c.order, nil)
	copy(c.order[i+1:], c.order[i:])
	c.order[i] = n
}

func (c *Cache) removeOrderedLocked(n *node.Node) {
	i := sort.Search(len(c.order), func(i int) bool { return !less(c.order[i], n) })
	for i < len(c.order) && c.order[i].ID != n.ID {
		i++
	}
	if i < len(c.order) {
		c.order = append(c.order[:i], c.order[i+1:]...)
	}
}

func (c *Cache) evictLocked() {
	for len(c.byID) > c.maxSize && c.maxSize >= 0 {
		front := c.lru.Front()
		if front == nil {
			return
		}
		id := front.Value.(uint64)
		e := c.byID[id]
		c.lru.Remove(front)
		delete(c.byID, id)
		if e != nil {
			c.removeOrderedLocked(e.n)
		}
	}
}

// GetByID returns the node with the given id if cached, marking it
// most-recently-used.
func (c *Cache) GetByID(id uint64) (*node.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.MoveToBack(e.elem)
	c.hits++
	return e.n, true
}

// Get searches the cache for the deepest cached node whose (first,last)
// interval contains key, starting the search at the deepest cached level
// and walking shallower. This mirrors the reference cache's
// descending-level scan: it never guesses a shallower ancestor when a
// deeper one might already be cached, since a deeper cache hit saves more
// of the tree walk.
func (c *Cache) Get(key keymath.Key) (*node.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		c.misses++
		return nil, false
	}
	deepest := c.order[0].Level
	for level := deepest; ; level-- {
		// order is sorted (level desc, first asc); binary-search the
		// first node at this level, then scan forward within it.
		start := sort.Search(len(c.order), func(i int) bool { return c.order[i].Level <= level })
		for i := start; i < len(c.order) && c.order[i].Level == level; i++ {
			n := c.order[i]
			if key.Compare(n.First) > 0 && key.Compare(n.Last) < 0 {
				c.lru.MoveToBack(c.byID[n.ID].elem)
				c.hits++
				return n, true
			}
		}
		if level == 0 {
			break
		}
	}
	c.misses++
	return nil, false
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	Inserts uint64
	Updates uint64
}

// Stat returns a snapshot of the cache's counters, matching the fields the
// reference implementation logs on every flush cycle.
func (c *Cache) Stat() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:    len(c.byID),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		Inserts: c.inserts,
		Updates: c.updates,
	}
}
