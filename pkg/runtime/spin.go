package runtime

import (
	_ "unsafe" // for go:linkname
)

// Procyield spins for a given number of cycles without yielding to the
// scheduler. It uses the CPU PAUSE instruction on x86 to reduce power
// consumption during spinning. queue.MPMC's Enqueue/Dequeue call this
// during their active-spin phase, before falling back to
// runtime.Gosched().
// cycles: number of spin iterations (typically 4-30 for short waits).
//
//go:linkname Procyield runtime.procyield
func Procyield(cycles uint32)
