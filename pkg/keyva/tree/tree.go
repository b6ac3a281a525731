// Package tree implements the keyspace trie façade: root initialization,
// cached point lookup, the pre-order walk used by diagnostics, and the
// commit path a flush uses to persist a mutated node and refresh its cache
// entry. Grounded on the reference store's Tree<BITS>.
package tree

import (
	"github.com/pkg/errors"

	"github.com/huynhanx03/keyva/pkg/keyva/cache"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/keystore"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
)

const rootID = 0

// ErrKeyNotFound is returned when a lookup reaches a leaf with no child
// covering the target key.
var ErrKeyNotFound = errors.New("tree: key not found")

// NodeFunc is invoked once per node during Walk, given the node and its
// depth from the root.
type NodeFunc func(n *node.Node, level uint32) error

// Tree is the keyspace trie façade over a KeyStore and NodeCache.
type Tree struct {
	store *keystore.KeyStore
	cache *cache.Cache
}

// New constructs a Tree over the given store and cache; neither is owned
// exclusively, matching the reference implementation's constructor taking
// both by reference.
func New(store *keystore.KeyStore, c *cache.Cache) *Tree {
	return &Tree{store: store, cache: c}
}

func firstRootKey() keymath.Key { return keymath.Min().Add(keymath.Key{0, 0, 0, 1}) }
func lastRootKey() keymath.Key  { return keymath.Max() }

// Init builds the root node if it isn't already present. If addSynthetics
// is set, a freshly created root is pre-filled with synthetic keys
// partitioning its interval (matching a fresh database); a reopened
// database's existing root is left untouched.
func (t *Tree) Init(addSynthetics bool) error {
	if _, err := t.store.Get(rootID); err == nil {
		return nil
	}
	root := t.store.New(0, firstRootKey(), lastRootKey())
	if addSynthetics {
		root.AddSyntheticKeyValues()
	}
	t.cache.Reset()
	t.cache.Add(root)
	return t.store.Set(root)
}

// Walk visits every node in the trie in pre-order (parent before children),
// starting at the root.
func (t *Tree) Walk(f NodeFunc) error {
	return t.walk(rootID, 0, f)
}

// Root returns the root node.
func (t *Tree) Root() (*node.Node, error) { return t.GetNode(rootID) }

// GetNode returns the node with the given id, preferring the cache.
func (t *Tree) GetNode(id uint64) (*node.Node, error) {
	if n, ok := t.cache.GetByID(id); ok {
		return n, nil
	}
	return t.store.Get(id)
}

// CreateNode allocates (without persisting) a new node at the given level
// spanning (first,last).
func (t *Tree) CreateNode(level uint32, first, last keymath.Key) *node.Node {
	return t.store.New(level, first, last)
}

// Get performs a point lookup for key, searching the cache for the deepest
// node whose interval might contain it and descending from there (or from
// the root, on a cache miss) until the key is found in a node's key slots
// or a leaf has no child to descend into.
func (t *Tree) Get(key keymath.Key) (node.KeyValue, error) {
	n, ok := t.cache.Get(key)
	if !ok {
		root, err := t.store.Get(rootID)
		if err != nil {
			return node.KeyValue{}, errors.Wrap(err, "tree: no root")
		}
		n = root
	}
	return t.get(n, key)
}

func (t *Tree) get(n *node.Node, key keymath.Key) (node.KeyValue, error) {
	if kv, ok := n.Find(key); ok {
		return kv, nil
	}
	found := false
	var result node.KeyValue
	var resultErr error
	err := n.EachChild(func(i int, first, last keymath.Key, cid uint64) error {
		if key.Compare(first) > 0 && key.Compare(last) < 0 {
			found = true
			if cid == node.EmptyChild {
				resultErr = ErrKeyNotFound
				return resultErr
			}
			child, err := t.store.Get(cid)
			if err != nil {
				return err
			}
			t.cache.Add(child)
			result, resultErr = t.get(child, key)
			return resultErr
		}
		return nil
	})
	if err != nil {
		return node.KeyValue{}, err
	}
	if !found {
		return node.KeyValue{}, ErrKeyNotFound
	}
	return result, resultErr
}

// Update persists n and refreshes its cache entry.
func (t *Tree) Update(n *node.Node) error {
	if err := t.store.Set(n); err != nil {
		return err
	}
	t.cache.Add(n)
	return nil
}

// Sane walks the whole tree and reports whether every node satisfies its
// invariants.
func (t *Tree) Sane() (bool, error) {
	sane := true
	err := t.Walk(func(n *node.Node, level uint32) error {
		if !n.Sane() {
			sane = false
		}
		return nil
	})
	return sane, err
}

// NonSyntheticKeyCount returns the total number of real (non-synthetic,
// non-empty) keys stored across the whole trie.
func (t *Tree) NonSyntheticKeyCount() (int, error) {
	count := 0
	err := t.Walk(func(n *node.Node, level uint32) error {
		count += n.NonSyntheticKeyCount()
		return nil
	})
	return count, err
}

func (t *Tree) walk(id uint64, level uint32, f NodeFunc) error {
	n, err := t.store.Get(id)
	if err != nil {
		return err
	}
	if err := f(n, level); err != nil {
		return err
	}
	return n.EachChild(func(i int, first, last keymath.Key, cid uint64) error {
		if cid != node.EmptyChild {
			return t.walk(cid, level+1, f)
		}
		return nil
	})
}
