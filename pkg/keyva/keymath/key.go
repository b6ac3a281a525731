// Package keymath implements fixed-width 256-bit key arithmetic for the
// keyspace trie: construction from bytes/hex/strings, comparison, and the
// distance/stride/nearest-stride placement math the delta and node packages
// build on.
package keymath

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// KeySize is the width of a Key in bytes (256 bits).
const KeySize = 32

// Key is a 256-bit unsigned integer, stored as four big-endian uint64 limbs
// (most significant first) so keys can be compared and added without an
// arbitrary-precision library.
type Key [4]uint64

// Zero is the all-zero key, reserved as the EmptyValue sentinel offset and
// never a valid node key.
var Zero = Key{}

// Min returns the smallest key usable as a tree boundary (util::Min() + 1 in
// the reference implementation is the root's first bound; Min itself is 0).
func Min() Key { return Zero }

// Max returns the largest representable key, 2^256-1.
func Max() Key {
	return Key{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
}

// FromBytes decodes a big-endian 32-byte slice into a Key.
func FromBytes(b []byte) (Key, error) {
	if len(b) != KeySize {
		return Key{}, fmt.Errorf("keymath: key must be %d bytes, got %d", KeySize, len(b))
	}
	var k Key
	k[0] = binary.BigEndian.Uint64(b[0:8])
	k[1] = binary.BigEndian.Uint64(b[8:16])
	k[2] = binary.BigEndian.Uint64(b[16:24])
	k[3] = binary.BigEndian.Uint64(b[24:32])
	return k, nil
}

// ToBytes encodes the key as big-endian bytes.
func (k Key) ToBytes() []byte {
	b := make([]byte, KeySize)
	binary.BigEndian.PutUint64(b[0:8], k[0])
	binary.BigEndian.PutUint64(b[8:16], k[1])
	binary.BigEndian.PutUint64(b[16:24], k[2])
	binary.BigEndian.PutUint64(b[24:32], k[3])
	return b
}

// WriteBytes writes the key's big-endian encoding into dst at pos and
// returns the number of bytes written.
func (k Key) WriteBytes(dst []byte, pos int) int {
	b := k.ToBytes()
	copy(dst[pos:pos+KeySize], b)
	return KeySize
}

// ReadBytes reads a big-endian key out of src at pos.
func ReadBytes(src []byte, pos int) (Key, int) {
	var k Key
	k[0] = binary.BigEndian.Uint64(src[pos : pos+8])
	k[1] = binary.BigEndian.Uint64(src[pos+8 : pos+16])
	k[2] = binary.BigEndian.Uint64(src[pos+16 : pos+24])
	k[3] = binary.BigEndian.Uint64(src[pos+24 : pos+32])
	return k, KeySize
}

// FromHex decodes a hex-encoded key.
func FromHex(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("keymath: bad hex key: %w", err)
	}
	return FromBytes(b)
}

// ToHex renders the key as a lowercase hex string.
func (k Key) ToHex() string {
	return hex.EncodeToString(k.ToBytes())
}

// FromSeed derives a 256-bit key from an arbitrary string by striping four
// independent xxhash passes (one per limb) over the seed. This gives CLI
// users a human string in place of 64 hex characters; it makes no
// distribution guarantees beyond those of xxhash itself.
func FromSeed(seed string) Key {
	var k Key
	base := xxhash.Sum64String(seed)
	for i := range k {
		h := xxhash.New()
		_, _ = h.Write([]byte(seed))
		var suffix [8]byte
		binary.BigEndian.PutUint64(suffix[:], base+uint64(i))
		_, _ = h.Write(suffix[:])
		k[i] = h.Sum64()
	}
	return k
}

// Compare returns -1, 0, or 1 as k is less than, equal to, or greater than o.
func (k Key) Compare(o Key) int {
	for i := 0; i < 4; i++ {
		if k[i] != o[i] {
			if k[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether k < o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k == Zero }

// Add returns k+o, wrapping on overflow (the keyspace is closed under the
// addition used for stride placement; overflow would only occur near Max,
// which callers never target as a stride cursor in practice).
func (k Key) Add(o Key) Key {
	var out Key
	var carry uint64
	for i := 3; i >= 0; i-- {
		sum, c1 := bits.Add64(k[i], o[i], carry)
		out[i] = sum
		carry = c1
	}
	return out
}

// Sub returns k-o.
func (k Key) Sub(o Key) Key {
	var out Key
	var borrow uint64
	for i := 3; i >= 0; i-- {
		diff, b1 := bits.Sub64(k[i], o[i], borrow)
		out[i] = diff
		borrow = b1
	}
	return out
}

// MulSmall returns k*n for a small uint64 multiplier, truncating on overflow
// of the 256-bit result (stride*index products stay well inside range for
// any degree this store supports).
func (k Key) MulSmall(n uint64) Key {
	var out Key
	var carry uint64
	for i := 3; i >= 0; i-- {
		hi, lo := bits.Mul64(k[i], n)
		lo2, c := bits.Add64(lo, carry, 0)
		out[i] = lo2
		carry = hi + c
	}
	return out
}

// DivSmall returns k/n for a small uint64 divisor using long division over
// the four limbs, plus the remainder.
func (k Key) DivSmall(n uint64) (q Key, r uint64) {
	if n == 0 {
		panic("keymath: division by zero")
	}
	var rem uint64
	for i := 0; i < 4; i++ {
		hi, lo := rem, k[i]
		q[i], rem = bits.Div64(hi, lo, n)
	}
	return q, rem
}

// Distance returns last-first.
func Distance(first, last Key) Key { return last.Sub(first) }

// Stride returns the per-child key interval width for a node of the given
// degree spanning (first,last): distance/degree, rounded down.
func Stride(first, last Key, degree int) Key {
	d := Distance(first, last)
	q, _ := d.DivSmall(uint64(degree))
	return q
}

// NearestStride maps key into a node's array of equally-spaced stride
// points starting at first, returning the 0-based key-slot index it is
// nearest to and the remainder distance within that slot (used by the
// delta package to prefer the candidate closest to its slot's stride
// point when more than one candidate lands on the same slot).
//
// The slot for (key-first)/stride == 0 is rounded up to slot 0 rather than
// an underflowing slot -1, with distance measured from the far edge of
// that bucket instead of the near edge, matching the reference
// implementation's divide_qr-then-decrement construction.
func NearestStride(first, stride, key Key) (slot int, distance Key) {
	offset := Distance(first, key)
	if stride.IsZero() {
		return 0, Zero
	}
	q, rem := divKey(offset, stride)
	index := q[3]
	if index == 0 {
		index = 1
		rem = stride.Sub(rem)
	}
	return int(index - 1), rem
}

// divKey performs long division of a by b, both full 256-bit keys, returning
// quotient and remainder. It uses simple binary long division since keys
// have no signedness and degree-scaled strides never approach 2^256 in
// magnitude relative to typical offsets.
func divKey(a, b Key) (q, r Key) {
	if b.IsZero() {
		panic("keymath: division by zero")
	}
	for bitpos := 255; bitpos >= 0; bitpos-- {
		r = r.shiftLeft1()
		if a.bit(bitpos) {
			r[3] |= 1
		}
		if r.Compare(b) >= 0 {
			r = r.Sub(b)
			q = q.setBit(bitpos)
		}
	}
	return q, r
}

func (k Key) shiftLeft1() Key {
	var out Key
	var carry uint64
	for i := 3; i >= 0; i-- {
		out[i] = (k[i] << 1) | carry
		carry = k[i] >> 63
	}
	return out
}

func (k Key) bit(pos int) bool {
	limb := 3 - pos/64
	off := uint(pos % 64)
	return (k[limb]>>off)&1 == 1
}

func (k Key) setBit(pos int) Key {
	limb := 3 - pos/64
	off := uint(pos % 64)
	k[limb] |= 1 << off
	return k
}
