// Package buffer pools the growable buffer.Buffer each flush cycle stages
// its write batch in, so the 1-second flush loop reuses one backing array
// across cycles instead of growing a fresh one from scratch every time.
package buffer

import (
	"github.com/huynhanx03/keyva/pkg/datastructs/buffer"
	"github.com/huynhanx03/keyva/pkg/pool/internal/calibrated"
)

var defaultPool = calibrated.New(
	// newFunc: create Buffer of given size
	func(size int) *buffer.Buffer {
		return buffer.New(size)
	},
	// sizeFunc: get length of buffer
	func(b *buffer.Buffer) int {
		return b.Len()
	},
	// resetFunc: reset buffer
	func(b *buffer.Buffer) {
		b.Reset()
	},
)

// GetSize returns a buffer sized for one flush's write batch, at least
// batchSize bytes.
func GetSize(batchSize int) *buffer.Buffer {
	return defaultPool.Get(batchSize)
}

// Put returns a buffer to the pool once its batch has been copied out and
// handed to ValueStore.AppendBatch.
func Put(b *buffer.Buffer) {
	defaultPool.Put(b)
}
