// Package byteslice pools the per-record byte slices buffer.Buffer.Write
// encodes each staged value into while building one flush's write batch,
// so a flush touching many small records doesn't allocate and discard one
// slice per record.
package byteslice

import (
	"github.com/huynhanx03/keyva/pkg/pool/internal/calibrated"
)

var defaultPool = calibrated.New(
	// newFunc: create []byte of given size
	func(size int) []byte {
		return make([]byte, size)
	},
	// sizeFunc: get capacity of slice
	func(b []byte) int {
		return cap(b)
	},
	// resetFunc: nothing to reset (Put already hands back the slice at full
	// capacity)
	func(b []byte) {
		_ = b[:cap(b)]
	},
)

// Get returns a byte slice of at least the given size from the pool, sized
// for encoding one value-log record.
func Get(size int) []byte {
	b := defaultPool.Get(size)
	return b[:size]
}

// Put returns a byte slice to the pool once its record has been copied
// into the flush's write batch.
func Put(b []byte) {
	if len(b) == 0 {
		return
	}
	defaultPool.Put(b[:cap(b)])
}
