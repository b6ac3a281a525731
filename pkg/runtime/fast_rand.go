// Package runtime links directly against a couple of the Go runtime's own
// internal primitives rather than reaching for math/rand or sync
// facilities, for the two hot spots in this tree that can't afford their
// overhead: cmd/keyva-loadtest's producer goroutines (Uint32/Unit64, to
// generate random keys and value bytes at the rate the writers can drain
// them) and queue.MPMC's enqueue/dequeue retry loop (Procyield, see
// spin.go).
package runtime

import (
	_ "unsafe" // for go:linkname
)

// Uint32 returns a fast random uint32 value, used by cmd/keyva-loadtest to
// fill random value payloads one byte at a time.
//
//go:linkname Uint32 runtime.fastrand
func Uint32() uint32

// Unit64 returns a fast random uint64 value, used by cmd/keyva-loadtest to
// assemble the four limbs of a random keymath.Key.
func Unit64() uint64 {
	v := uint64(Uint32())
	return v<<32 | uint64(Uint32())
}
