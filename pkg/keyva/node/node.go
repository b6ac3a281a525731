// Package node implements the fixed-degree keyspace trie node: its on-disk
// block layout, the five structural invariants, and the child-interval walk
// used by the tree and delta packages.
package node

import (
	"encoding/binary"
	"fmt"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

// EmptyChild marks an unset child slot.
const EmptyChild uint64 = 0

// EmptyValue marks an unset key/value slot.
const EmptyValue uint64 = 0

// SyntheticValue marks a key that exists only to partition the keyspace and
// carries no real value.
const SyntheticValue uint64 = ^uint64(0)

// headerSize is the level (u32) plus first and last keys.
const headerSize = 4 + keymath.KeySize + keymath.KeySize

// keyValueSize is the encoded size of one KeyValue slot: key || offset(u64)
// || length(u32).
const keyValueSize = keymath.KeySize + 8 + 4

// childSize is the encoded size of one child id.
const childSize = 8

// KeyValue is a (key, offset, length) triple referencing a record in the
// value log, or a sentinel (EmptyValue / SyntheticValue) in the offset
// field.
type KeyValue struct {
	Key    keymath.Key
	Offset uint64
	Length uint32
}

// IsZero reports whether this slot is unused.
func (kv KeyValue) IsZero() bool { return kv.Offset == EmptyValue && kv.Length == 0 && kv.Key.IsZero() }

// IsSynthetic reports whether this slot exists only to partition the
// keyspace.
func (kv KeyValue) IsSynthetic() bool { return kv.Offset == SyntheticValue }

// Less orders KeyValues by key only, matching the reference ordering used
// when sorting a node's key slots.
func (kv KeyValue) Less(o KeyValue) bool { return kv.Key.Less(o.Key) }

// ChildFunc is called once per populated child interval during EachChild,
// given the child's slot index and its (first,last) bound and id.
type ChildFunc func(index int, first, last keymath.Key, childID uint64) error

// Node is one block of the keyspace trie: a sorted array of up to Degree-1
// keys plus Degree children, spanning the half-open interval (First,Last).
//
// Invariants:
//  1. Keys are sorted, lowest to highest.
//  2. Each non-zero key is unique.
//  3. First is strictly lower than Last.
//  4. Each non-zero key lies strictly between First and Last.
//  5. No child may be populated unless all key slots are populated.
type Node struct {
	// ID is this node's block index in the key file (block 0 is the root),
	// not a byte offset — KeyStore multiplies by the block size itself at
	// every ReadAt/WriteAt, so children and the free-block counter only ever
	// deal in block counts.
	ID       uint64
	Level    uint32
	degree   int
	First    keymath.Key
	Last     keymath.Key
	Keys     []KeyValue
	children []uint64
}

// New constructs a node spanning (first,last) with room for degree children
// and degree-1 keys. It panics if first >= last, matching the reference
// implementation's constructor (a malformed node is a programming error,
// not a runtime condition callers can recover from).
func New(id uint64, level uint32, degree int, first, last keymath.Key) *Node {
	if !first.Less(last) {
		panic(fmt.Sprintf("node: first must be lower than last: %s %s", first.ToHex(), last.ToHex()))
	}
	return &Node{
		ID:       id,
		Level:    level,
		degree:   degree,
		First:    first,
		Last:     last,
		Keys:     make([]KeyValue, degree-1),
		children: make([]uint64, degree),
	}
}

// CalculateDegree derives the node's fan-out from the on-disk block size:
// D = (blockSize - 2*keySize - 12) / (keySize + 20), the layout's header
// (one u32 level plus two keys) amortized over per-slot key/offset/length
// and per-child id costs.
func CalculateDegree(blockSize uint32) int {
	const bytes = keymath.KeySize
	return int((blockSize - 2*bytes - 12) / (bytes + 20))
}

// Degree returns the node's fan-out (number of child slots).
func (n *Node) Degree() int { return n.degree }

// BlockSize returns the encoded size in bytes for a node of this degree.
func BlockSize(degree int) int {
	return headerSize + (degree-1)*keyValueSize + degree*childSize
}

// Write encodes the node into a byte slice of exactly BlockSize(n.Degree())
// bytes: u32 level || first(BE) || last(BE) || (degree-1)x(key(BE) ||
// offset(LE u64) || length(LE u32)) || degree x child(LE u64).
func (n *Node) Write() []byte {
	buf := make([]byte, BlockSize(n.degree))
	pos := 0
	binary.LittleEndian.PutUint32(buf[pos:], n.Level)
	pos += 4
	pos += n.First.WriteBytes(buf, pos)
	pos += n.Last.WriteBytes(buf, pos)
	for _, kv := range n.Keys {
		pos += kv.Key.WriteBytes(buf, pos)
		binary.LittleEndian.PutUint64(buf[pos:], kv.Offset)
		pos += 8
		binary.LittleEndian.PutUint32(buf[pos:], kv.Length)
		pos += 4
	}
	for _, cid := range n.children {
		binary.LittleEndian.PutUint64(buf[pos:], cid)
		pos += 8
	}
	return buf
}

// Read decodes a node's mutable fields (level, first, last, keys, children)
// from a block previously produced by Write. ID and Degree must already be
// set by the caller (they come from the block's position/size in the key
// file, not from the block payload itself).
func (n *Node) Read(buf []byte) error {
	if len(buf) != BlockSize(n.degree) {
		return fmt.Errorf("node: block size mismatch: got %d want %d", len(buf), BlockSize(n.degree))
	}
	pos := 0
	n.Level = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	n.First, _ = keymath.ReadBytes(buf, pos)
	pos += keymath.KeySize
	n.Last, _ = keymath.ReadBytes(buf, pos)
	pos += keymath.KeySize
	n.Keys = make([]KeyValue, n.degree-1)
	for i := range n.Keys {
		k, _ := keymath.ReadBytes(buf, pos)
		pos += keymath.KeySize
		offset := binary.LittleEndian.Uint64(buf[pos:])
		pos += 8
		length := binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
		n.Keys[i] = KeyValue{Key: k, Offset: offset, Length: length}
	}
	n.children = make([]uint64, n.degree)
	for i := range n.children {
		n.children[i] = binary.LittleEndian.Uint64(buf[pos:])
		pos += 8
	}
	return nil
}

// Stride returns (Last-First)/Degree, the per-child interval width.
func (n *Node) Stride() keymath.Key {
	return keymath.Stride(n.First, n.Last, n.degree)
}

// Distance returns Last-First.
func (n *Node) Distance() keymath.Key {
	return keymath.Distance(n.First, n.Last)
}

// AddSyntheticKeyValues fills every empty key slot with a synthetic key
// spaced evenly across (First,Last) by Stride, so a freshly created node
// already partitions its interval before any real key lands in it. Returns
// the number of slots filled.
func (n *Node) AddSyntheticKeyValues() int {
	stride := n.Stride()
	cursor := n.First.Add(stride)
	count := 0
	for i := range n.Keys {
		if n.Keys[i].IsZero() {
			n.Keys[i] = KeyValue{Key: cursor, Offset: SyntheticValue, Length: 0}
			count++
		}
		cursor = cursor.Add(stride)
	}
	return count
}

// Clear resets every key slot to empty.
func (n *Node) Clear() {
	for i := range n.Keys {
		n.Keys[i] = KeyValue{}
	}
}

// SetChild sets the child id at slot i.
func (n *Node) SetChild(i int, childID uint64) { n.children[i] = childID }

// GetChild returns the child id at slot i.
func (n *Node) GetChild(i int) uint64 { return n.children[i] }

// EachChild invokes f once for every populated child interval: slot i's
// bound is (First,Keys[0]) for i==0, (Keys[degree-2],Last) for the last
// slot, and (Keys[i-1],Keys[i]) otherwise. A slot is skipped if either
// bounding key is zero (unpopulated), since an interval can't be formed.
func (n *Node) EachChild(f ChildFunc) error {
	length := n.degree
	for i := 0; i < length; i++ {
		var lo, hi keymath.Key
		populated := true
		switch {
		case i == 0:
			if n.Keys[i].IsZero() {
				populated = false
			}
			lo, hi = n.First, n.Keys[i].Key
		case i == length-1:
			if n.Keys[i-1].IsZero() {
				populated = false
			}
			lo, hi = n.Keys[i-1].Key, n.Last
		default:
			if n.Keys[i-1].IsZero() || n.Keys[i].IsZero() {
				populated = false
			}
			lo, hi = n.Keys[i-1].Key, n.Keys[i].Key
		}
		if !populated {
			continue
		}
		if err := f(i, lo, hi, n.children[i]); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the KeyValue stored under key and whether it was found.
func (n *Node) Find(key keymath.Key) (KeyValue, bool) {
	for _, kv := range n.Keys {
		if kv.Key.Compare(key) == 0 {
			return kv, true
		}
	}
	return KeyValue{}, false
}

// Sane checks all five node invariants.
func (n *Node) Sane() bool {
	if !n.First.Less(n.Last) {
		return false
	}
	for i := 1; i < len(n.Keys); i++ {
		if n.Keys[i].Key.Less(n.Keys[i-1].Key) {
			return false
		}
	}
	for i := 0; i < n.degree-1; i++ {
		if !n.Keys[i].IsZero() {
			if i > 0 && n.Keys[i].Key.Compare(n.Keys[i-1].Key) == 0 && !n.Keys[i-1].IsZero() {
				return false
			}
			if n.Keys[i].Key.Compare(n.First) <= 0 || n.Keys[i].Key.Compare(n.Last) >= 0 {
				return false
			}
		}
	}
	if n.EmptyKeyCount() > 0 && n.EmptyChildCount() != n.degree {
		return false
	}
	return true
}

// EmptyKeyCount returns the number of unpopulated key slots.
func (n *Node) EmptyKeyCount() int {
	count := 0
	for _, kv := range n.Keys {
		if kv.IsZero() {
			count++
		}
	}
	return count
}

// NonEmptyKeyCount returns the number of populated key slots.
func (n *Node) NonEmptyKeyCount() int { return len(n.Keys) - n.EmptyKeyCount() }

// EmptyChildCount returns the number of unset child slots.
func (n *Node) EmptyChildCount() int {
	count := 0
	for _, c := range n.children {
		if c == EmptyChild {
			count++
		}
	}
	return count
}

// NonSyntheticKeyCount returns the number of key slots holding a real,
// committed value (neither empty nor synthetic).
func (n *Node) NonSyntheticKeyCount() int {
	count := 0
	for _, kv := range n.Keys {
		if !kv.IsZero() && !kv.IsSynthetic() {
			count++
		}
	}
	return count
}

// Empty reports whether every key slot is unpopulated.
func (n *Node) Empty() bool { return n.EmptyKeyCount() == len(n.Keys) }

// MaxKeys returns the number of key slots (Degree-1).
func (n *Node) MaxKeys() int { return len(n.Keys) }
