// Package journal drives one flush cycle: it walks the trie building a
// Delta per touched node (Process), then writes every staged value and
// persists the touched nodes deepest-first so no parent ever references an
// unwritten child (Commit). Grounded on the reference store's
// Journal<BITS>.
package journal

import (
	"sort"

	"github.com/huynhanx03/keyva/pkg/keyva/buffer"
	"github.com/huynhanx03/keyva/pkg/keyva/delta"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
	"github.com/huynhanx03/keyva/pkg/keyva/tree"
	"github.com/huynhanx03/keyva/pkg/keyva/valuestore"
)

// Journal holds one flush's deltas, grouped by trie level in deltas so
// Commit can persist levels deepest-first. Go has no ordered multimap, so this
// replaces the reference implementation's std::multimap<level,Delta> with
// an explicit map plus an on-commit sort of its keys — the only place this
// package intentionally departs from the reference's container choice.
type Journal struct {
	buffer *buffer.Buffer
	values *valuestore.ValueStore

	offset uint64
	deltas map[uint32][]*delta.Delta
}

// New constructs a Journal over buf and values; neither is owned
// exclusively.
func New(buf *buffer.Buffer, values *valuestore.ValueStore) *Journal {
	return &Journal{buffer: buf, values: values, deltas: make(map[uint32][]*delta.Delta)}
}

// Process walks the trie from its root, building a Delta for every node
// the buffer has staged keys for, recursing into children whose interval
// the buffer still has staged keys in (and creating children that don't
// exist yet but need to).
func (j *Journal) Process(t *tree.Tree) error {
	j.offset = valueStoreSize(j.values)
	root, err := t.Root()
	if err != nil {
		return err
	}
	return j.process(t, root)
}

func valueStoreSize(v *valuestore.ValueStore) uint64 {
	size, err := v.Size()
	if err != nil {
		return 0
	}
	return size
}

func (j *Journal) process(t *tree.Tree, n *node.Node) error {
	d := delta.New(n)
	j.offset = d.AddKeys(j.buffer, j.offset)

	if d.Current().EmptyKeyCount() == 0 {
		err := d.Current().EachChild(func(i int, first, last keymath.Key, cid uint64) error {
			if !j.buffer.ContainsRange(first, last) {
				return nil
			}
			if cid == node.EmptyChild {
				child := t.CreateNode(n.Level+1, first, last)
				d.SetChild(i, child.ID)
				return j.process(t, child)
			}
			child, err := t.GetNode(cid)
			if err != nil {
				return err
			}
			return j.process(t, child)
		})
		if err != nil {
			return err
		}
	}

	if d.Dirty() {
		j.deltas[n.Level] = append(j.deltas[n.Level], d)
	}
	return nil
}

// Commit writes every NeedsCommitting buffer entry to the value log in
// batches of approximately batchSize bytes, then persists every touched
// node deepest-level-first (so a parent is never written while pointing at
// a child id that doesn't exist on disk yet), then purges the buffer of
// everything that was just committed.
func (j *Journal) Commit(t *tree.Tree, batchSize int) error {
	for {
		wb, ok := j.buffer.Write(batchSize)
		if !ok {
			break
		}
		if _, err := j.values.AppendBatch(wb); err != nil {
			return err
		}
	}

	levels := make([]uint32, 0, len(j.deltas))
	for level := range j.deltas {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, k int) bool { return levels[i] > levels[k] })
	for _, level := range levels {
		for _, d := range j.deltas[level] {
			if err := t.Update(d.Current()); err != nil {
				return err
			}
		}
	}

	j.buffer.Purge()
	j.deltas = make(map[uint32][]*delta.Delta)
	return nil
}

// Size returns the number of nodes this journal has built a delta for.
func (j *Journal) Size() int {
	count := 0
	for _, ds := range j.deltas {
		count += len(ds)
	}
	return count
}

// TotalInsertions returns the sum of every delta's net insertion count.
func (j *Journal) TotalInsertions() int {
	total := 0
	for _, ds := range j.deltas {
		for _, d := range ds {
			total += d.Insertions()
		}
	}
	return total
}
