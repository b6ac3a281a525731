package cache

import (
	"testing"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
)

func mustNode(id uint64, level uint32, lo, hi uint64) *node.Node {
	return node.New(id, level, 4, keymath.Key{0, 0, 0, lo}, keymath.Key{0, 0, 0, hi})
}

func TestAddGetByID(t *testing.T) {
	c := New(10)
	n := mustNode(1, 0, 0, 100)
	c.Add(n)

	got, ok := c.GetByID(1)
	if !ok || got.ID != 1 {
		t.Fatalf("GetByID(1) = %v, %v", got, ok)
	}
	if _, ok := c.GetByID(2); ok {
		t.Fatal("GetByID(2) should miss")
	}
}

func TestEvictionRespectsMaxSize(t *testing.T) {
	c := New(2)
	c.Add(mustNode(1, 0, 0, 100))
	c.Add(mustNode(2, 0, 100, 200))
	c.Add(mustNode(3, 0, 200, 300))

	if _, ok := c.GetByID(1); ok {
		t.Error("id 1 should have been evicted (least recently used)")
	}
	if _, ok := c.GetByID(2); !ok {
		t.Error("id 2 should still be cached")
	}
	if _, ok := c.GetByID(3); !ok {
		t.Error("id 3 should still be cached")
	}
}

func TestAddMarksMostRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Add(mustNode(1, 0, 0, 100))
	c.Add(mustNode(2, 0, 100, 200))
	c.GetByID(1) // touch 1, making 2 the LRU
	c.Add(mustNode(3, 0, 200, 300))

	if _, ok := c.GetByID(2); ok {
		t.Error("id 2 should have been evicted")
	}
	if _, ok := c.GetByID(1); !ok {
		t.Error("id 1 should still be cached (recently touched)")
	}
}

func TestGetDeepestFirst(t *testing.T) {
	c := New(10)
	root := mustNode(0, 0, 0, 1000)
	mid := mustNode(1, 1, 400, 600)
	leaf := mustNode(2, 2, 480, 520)
	c.Add(root)
	c.Add(mid)
	c.Add(leaf)

	got, ok := c.Get(keymath.Key{0, 0, 0, 500})
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.ID != 2 {
		t.Errorf("Get found node %d, want deepest node 2", got.ID)
	}
}

func TestGetFallsBackToShallowerLevel(t *testing.T) {
	c := New(10)
	root := mustNode(0, 0, 0, 1000)
	mid := mustNode(1, 1, 400, 600)
	c.Add(root)
	c.Add(mid)

	got, ok := c.Get(keymath.Key{0, 0, 0, 50})
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.ID != 0 {
		t.Errorf("Get found node %d, want root 0", got.ID)
	}
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New(10)
	if _, ok := c.Get(keymath.Key{0, 0, 0, 1}); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestStat(t *testing.T) {
	c := New(10)
	c.Add(mustNode(1, 0, 0, 100))
	c.GetByID(1)
	c.GetByID(99)

	s := c.Stat()
	if s.Size != 1 {
		t.Errorf("Size = %d, want 1", s.Size)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Hits=%d Misses=%d, want 1,1", s.Hits, s.Misses)
	}
	if s.Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", s.Inserts)
	}
}

func TestReset(t *testing.T) {
	c := New(10)
	c.Add(mustNode(1, 0, 0, 100))
	c.Reset()
	if _, ok := c.GetByID(1); ok {
		t.Error("expected empty cache after Reset")
	}
}
