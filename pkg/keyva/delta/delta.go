// Package delta implements the copy-on-write mutation plan a flush builds
// for one trie node: gathering candidate and evicted keys from the buffer,
// deduplicating against the node's existing keys, and placing the survivors
// either by direct sort (when they fit) or by nearest-stride bucketing (when
// they would overflow the node). Grounded on the reference store's
// Delta<BITS>.
package delta

import (
	"sort"

	"github.com/huynhanx03/keyva/pkg/keyva/buffer"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
)

// Delta accumulates the pending mutation for one node across a flush: the
// node is cloned on first write (Flip) so readers concurrently walking the
// tree keep seeing the unmodified node until the flush commits it.
type Delta struct {
	current  *node.Node
	previous *node.Node

	existing   int
	insertions int
	evictions  int
	synthetics int
	children   int
}

// New wraps node in a Delta that has not yet been mutated.
func New(n *node.Node) *Delta { return &Delta{current: n} }

// Flip clones the node on first mutation (copy-on-write); subsequent calls
// are no-ops.
func (d *Delta) Flip() {
	if d.previous == nil {
		prev := d.current
		d.previous = prev
		clone := node.New(prev.ID, prev.Level, prev.Degree(), prev.First, prev.Last)
		copy(clone.Keys, prev.Keys)
		for i := 0; i < prev.Degree(); i++ {
			clone.SetChild(i, prev.GetChild(i))
		}
		d.current = clone
	}
}

// Dirty reports whether Flip has run (equivalently, whether this delta has
// any pending mutation to commit).
func (d *Delta) Dirty() bool { return d.previous != nil }

// Current returns the (possibly cloned) node this delta will commit.
func (d *Delta) Current() *node.Node { return d.current }

// Insertions returns the net number of keys this delta adds to the trie.
func (d *Delta) Insertions() int { return d.insertions - d.evictions }

// Sane reports whether the current node still satisfies its invariants.
func (d *Delta) Sane() bool { return d.current.Sane() }

// SetChild flips the node and sets child i, used when a descendant's node
// id changes (e.g. the child was just created).
func (d *Delta) SetChild(i int, childID uint64) {
	d.Flip()
	d.children++
	d.current.SetChild(i, childID)
}

func kvLess(a, b node.KeyValue) bool { return a.Key.Less(b.Key) }

func sortKVs(kvs []node.KeyValue) {
	sort.Slice(kvs, func(i, j int) bool { return kvLess(kvs[i], kvs[j]) })
}

// indexOfKey returns the index of key in a key-sorted slice, or -1.
func indexOfKey(kvs []node.KeyValue, key keymath.Key) int {
	i := sort.Search(len(kvs), func(i int) bool { return kvs[i].Key.Compare(key) >= 0 })
	if i < len(kvs) && kvs[i].Key.Compare(key) == 0 {
		return i
	}
	return -1
}

// AddKeys gathers every buffered key that falls within this node's
// (First,Last) interval, deduplicates it against keys the node already
// holds, and places the survivors into the node's key slots: a direct
// copy-and-sort when everything fits, or nearest-stride bucketing (with
// synthetic backfill and eviction of any existing key that loses its slot)
// when it would overflow. Returns the value-log offset advanced past
// whatever new records this call assigned.
func (d *Delta) AddKeys(buf *buffer.Buffer, offset uint64) uint64 {
	maxKeys := d.current.MaxKeys()

	bufCandidates, bufEvictions := buf.GetCandidates(d.current.First, d.current.Last)
	if len(bufCandidates) == 0 && len(bufEvictions) == 0 {
		return offset
	}
	candidates := toNodeKVs(bufCandidates)
	evictions := toNodeKVs(bufEvictions)
	sortKVs(candidates)
	sortKVs(evictions)

	var existing []node.KeyValue
	for _, kv := range d.current.Keys {
		if !kv.IsZero() {
			existing = append(existing, kv)
		}
	}
	sortKVs(existing)
	d.existing = len(existing)

	// Remove candidates that duplicate an existing key: the buffer's
	// RemoveDuplicate drops them entirely so a later flush doesn't retry
	// the same key, and they're excluded from placement here.
	var deduped []node.KeyValue
	for _, c := range candidates {
		if indexOfKey(existing, c.Key) >= 0 {
			buf.RemoveDuplicate(c.Key)
			continue
		}
		deduped = append(deduped, c)
	}
	candidates = deduped

	if (len(candidates) == 0 && len(evictions) == 0) || d.current.EmptyKeyCount() == 0 {
		return offset
	}

	d.Flip()

	if len(existing)+len(candidates)+len(evictions) <= maxKeys {
		// Fits without overflow: lay candidates then evictions directly
		// into the key slots and sort once.
		n := 0
		for _, c := range candidates {
			d.current.Keys[n] = c
			n++
		}
		for _, e := range evictions {
			d.current.Keys[n] = e
			n++
		}
		for i := 0; i < n; i++ {
			d.insertions++
			buf.SetOffset(d.current.Keys[i].Key, offset)
			d.current.Keys[i].Offset = offset
			offset += uint64(d.current.Keys[i].Length)
		}
		sortKVs(d.current.Keys)
		return offset
	}

	// Overflow: combine every key under consideration, clear the node,
	// and place each into the stride slot it's nearest to, keeping only
	// the closest candidate per slot; slots left empty are filled with
	// synthetic keys; any existing key that didn't keep its slot is
	// evicted back to the buffer.
	combined := mergeSorted(candidates, evictions, existing)
	candidateSet := toKeySet(candidates)

	d.current.Clear()
	stride := d.current.Stride()
	prevSlot := -1
	best := keymath.Max()
	for _, kv := range combined {
		slot, dist := keymath.NearestStride(d.current.First, stride, kv.Key)
		if slot >= maxKeys {
			// kv lies past the last stride point, in the remainder that
			// Stride's rounding leaves at the top of the interval: it goes
			// to the last slot, measured from that slot's stride point.
			slot = maxKeys - 1
			dist = kv.Key.Sub(d.current.First.Add(stride.MulSmall(uint64(maxKeys))))
		}
		if (slot == prevSlot && dist.Compare(best) < 0) || slot != prevSlot {
			d.current.Keys[slot] = kv
			best = dist
		}
		prevSlot = slot
	}

	d.synthetics = d.current.AddSyntheticKeyValues()

	existingSet := toKeySet(existing)
	for i, kv := range d.current.Keys {
		if kv.IsSynthetic() {
			continue
		}
		if _, ok := candidateSet[kv.Key]; ok {
			d.insertions++
			buf.SetOffset(kv.Key, offset)
			kv.Offset = offset
			d.current.Keys[i] = kv
			offset += uint64(kv.Length)
		}
		delete(existingSet, kv.Key)
	}
	for _, kv := range existing {
		if _, stillThere := existingSet[kv.Key]; !stillThere {
			continue
		}
		if kv.IsSynthetic() {
			continue
		}
		d.evictions++
		buf.AddEvictee(kv.Key, kv.Offset, kv.Length)
	}
	return offset
}

func toNodeKVs(kvs []buffer.KeyValue) []node.KeyValue {
	out := make([]node.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = node.KeyValue{Key: kv.Key, Offset: kv.Offset, Length: kv.Length}
	}
	return out
}

func toKeySet(kvs []node.KeyValue) map[keymath.Key]struct{} {
	set := make(map[keymath.Key]struct{}, len(kvs))
	for _, kv := range kvs {
		set[kv.Key] = struct{}{}
	}
	return set
}

// mergeSorted merges three already key-sorted slices into one sorted slice.
// Candidates and evictions never share a key by construction (a buffered
// entry is in exactly one state), so ties only need to be broken against
// existing, which loses no information either way since only the key order
// matters for placement.
func mergeSorted(a, b, c []node.KeyValue) []node.KeyValue {
	all := append(append(append([]node.KeyValue{}, a...), b...), c...)
	sortKVs(all)
	return all
}
