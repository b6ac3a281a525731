// Package buffer implements the staging area for keys and values that have
// not yet been committed into the keyspace trie and value log: a
// thread-safe per-key state machine with a composite write order, grounded
// on the reference store's Buffer<BITS>.
package buffer

import (
	"sort"
	"sync"

	poolbuffer "github.com/huynhanx03/keyva/pkg/pool/buffer"
	"github.com/huynhanx03/keyva/pkg/pool/byteslice"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

// State is a value's position in the commit lifecycle.
type State uint8

const (
	// Unprocessed values have been Put but not yet seen by a flush.
	Unprocessed State = iota
	// Evicted values were displaced from the trie during a flush and are
	// staged for re-insertion; they carry their old offset/length but no
	// value bytes.
	Evicted
	// NeedsCommitting values have been assigned a node slot and offset
	// and are ready to be appended to the value log.
	NeedsCommitting
	// Committed values have been written to the value log.
	Committed
)

const maxValueLength = ^uint32(0) - 4 - keymath.KeySize

// Value is one buffered entry: its value-log placement (once known) and its
// lifecycle state.
type Value struct {
	Offset uint64
	Length uint32
	Bytes  []byte
	Status State
}

// less orders (state, offset, bytes) ascending, matching Value::operator<
// in the reference implementation: entries are grouped by state first so a
// state's run can be found with one bound, then by offset, then by content
// as a final tiebreak.
func less(a, b Value) bool {
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.Offset != b.Offset {
		return a.Offset < b.Offset
	}
	return string(a.Bytes) < string(b.Bytes)
}

type item struct {
	key keymath.Key
	val Value
}

// Buffer is a single-mutex, thread-safe staging area mapping keys to
// pending values. A secondary order by (state, offset, bytes) drives
// Write/Purge/ReadyForCommitting.
type Buffer struct {
	mu    sync.Mutex
	byKey map[keymath.Key]*item
	order []*item // kept sorted by less()
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{byKey: make(map[keymath.Key]*item)}
}

func (b *Buffer) insertLocked(it *item) {
	i := sort.Search(len(b.order), func(i int) bool { return !less(b.order[i].val, it.val) })
	b.order = append(b.order, nil)
	copy(b.order[i+1:], b.order[i:])
	b.order[i] = it
}

func (b *Buffer) removeLocked(it *item) {
	i := sort.Search(len(b.order), func(i int) bool { return !less(b.order[i].val, it.val) })
	for i < len(b.order) && b.order[i] != it {
		i++
	}
	if i < len(b.order) {
		b.order = append(b.order[:i], b.order[i+1:]...)
	}
}

// Get returns the value staged for key, if any and not Evicted (an evicted
// entry has no associated value bytes to return).
func (b *Buffer) Get(key keymath.Key) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.byKey[key]
	if !ok || it.val.Status == Evicted {
		return nil, false
	}
	return it.val.Bytes, true
}

// Add stages key/value as Unprocessed unless key already has an entry (an
// existing entry, in any state, is never silently overwritten). Returns the
// buffer's new size.
func (b *Buffer) Add(key keymath.Key, value []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byKey[key]; exists {
		return len(b.byKey)
	}
	length := uint32(len(value)) + 4 + keymath.KeySize
	it := &item{key: key, val: Value{Length: length, Bytes: value, Status: Unprocessed}}
	b.byKey[key] = it
	b.insertLocked(it)
	return len(b.byKey)
}

// AddEvictee stages a key that a flush displaced from the trie, recording
// its prior value-log placement so it can be re-inserted as a candidate.
func (b *Buffer) AddEvictee(key keymath.Key, offset uint64, length uint32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	it := &item{key: key, val: Value{Offset: offset, Length: length, Status: Evicted}}
	b.byKey[key] = it
	b.insertLocked(it)
	return len(b.byKey)
}

// RemoveDuplicate drops key entirely, used when a delta discovers the key
// is already present elsewhere in the trie.
func (b *Buffer) RemoveDuplicate(key keymath.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if it, ok := b.byKey[key]; ok {
		b.removeLocked(it)
		delete(b.byKey, key)
	}
}

// SetOffset assigns key its final value-log offset and transitions it to
// NeedsCommitting.
func (b *Buffer) SetOffset(key keymath.Key, offset uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.byKey[key]
	if !ok {
		return
	}
	b.removeLocked(it)
	it.val = Value{Offset: offset, Length: it.val.Length, Bytes: it.val.Bytes, Status: NeedsCommitting}
	b.insertLocked(it)
}

// GetCandidates collects, within the open interval (firstKey,lastKey),
// every Unprocessed entry into candidates and every Evicted entry into
// evictions.
func (b *Buffer) GetCandidates(firstKey, lastKey keymath.Key) (candidates, evictions []KeyValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.order {
		if it.key.Compare(firstKey) <= 0 || it.key.Compare(lastKey) >= 0 {
			continue
		}
		switch it.val.Status {
		case Unprocessed:
			candidates = append(candidates, KeyValue{Key: it.key, Offset: it.val.Offset, Length: it.val.Length})
		case Evicted:
			evictions = append(evictions, KeyValue{Key: it.key, Offset: it.val.Offset, Length: it.val.Length})
		}
	}
	return candidates, evictions
}

// KeyValue is the (key, offset, length) triple GetCandidates/Write operate
// on; it mirrors node.KeyValue without importing the node package, since
// buffer must not depend on the trie's own node representation.
type KeyValue struct {
	Key    keymath.Key
	Offset uint64
	Length uint32
}

// ContainsRange reports whether any Unprocessed or Evicted entry's key lies
// strictly between first and last.
func (b *Buffer) ContainsRange(first, last keymath.Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.byKey {
		if it.key.Compare(first) <= 0 || it.key.Compare(last) >= 0 {
			continue
		}
		if it.val.Status == Unprocessed || it.val.Status == Evicted {
			return true
		}
	}
	return false
}

// Write encodes up to batchSize bytes of NeedsCommitting entries (total
// record length u32 || key || value, per entry) into wb, transitioning each
// encoded entry to Committed, and returns whether anything was written. At
// least one entry is always written even if it alone exceeds batchSize.
func (b *Buffer) Write(batchSize int) (wb []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= NeedsCommitting })
	if i >= len(b.order) || b.order[i].val.Status != NeedsCommitting {
		return nil, false
	}
	batch := poolbuffer.GetSize(batchSize)
	defer poolbuffer.Put(batch)

	for i < len(b.order) && b.order[i].val.Status == NeedsCommitting {
		it := b.order[i]
		record := byteslice.Get(int(it.val.Length))
		putUint32(record, it.val.Length)
		p := 4
		p += it.key.WriteBytes(record, p)
		copy(record[p:], it.val.Bytes)
		batch.Write(record)
		byteslice.Put(record)

		b.removeLocked(it)
		it.val.Status = Committed
		b.insertLocked(it)

		i = sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= NeedsCommitting })
		if i >= len(b.order) || b.order[i].val.Status != NeedsCommitting {
			break
		}
		if batch.LenNoPadding()+int(b.order[i].val.Length) > batchSize {
			break
		}
	}
	wb = append(wb, batch.Bytes()...)
	return wb, true
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// Purge drops every Evicted and Committed entry, their useful life over. It
// panics if any NeedsCommitting entry remains, since Purge must only run
// after a successful Write has committed everything pending.
func (b *Buffer) Purge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= NeedsCommitting })
	if i < len(b.order) && b.order[i].val.Status == NeedsCommitting {
		panic("buffer: Purge called with NeedsCommitting entries still pending")
	}
	j := sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= Evicted })
	for _, it := range b.order[j:] {
		delete(b.byKey, it.key)
	}
	b.order = b.order[:j]
}

// Clear empties the buffer entirely.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKey = make(map[keymath.Key]*item)
	b.order = nil
}

// Size returns the total number of staged entries in any state.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byKey)
}

// ReadyForCommitting returns the number of entries currently in the
// NeedsCommitting state.
func (b *Buffer) ReadyForCommitting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	lo := sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= NeedsCommitting })
	hi := sort.Search(len(b.order), func(i int) bool { return b.order[i].val.Status >= Committed })
	return hi - lo
}
