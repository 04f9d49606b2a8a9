package buffer

import (
	"fmt"
	"log/slog"
	"sync"
)

// VolatileRegion is a per-size-class slab of memory: a fixed number of
// equal-sized slots, pre-reserved at construction and handed out to
// resident frames. No slot is ever moved once acquired; free returns it
// to the set for reuse.
//
// Hardening via ENABLE_MPROTECT (spec.md 4.3) would mark free slots
// PROT_NONE to trap stray accesses; Go's standard library has no portable
// mmap/mprotect binding, so this is a best-effort no-op here, logged once
// at construction rather than silently ignored (see DESIGN.md Open
// Question 4).
type VolatileRegion struct {
	class int
	size  int

	mu    sync.Mutex
	slots [][]byte
	free  []int // stack of free slot indices
}

// NewVolatileRegion pre-reserves slotCount slots of SizeOf(class) bytes
// each. enableMprotect is accepted for configuration parity but has no
// effect beyond a diagnostic log line.
func NewVolatileRegion(class, slotCount int, enableMprotect bool) *VolatileRegion {
	if slotCount <= 0 {
		slotCount = 1
	}
	v := &VolatileRegion{
		class: class,
		size:  SizeOf(class),
		slots: make([][]byte, slotCount),
		free:  make([]int, slotCount),
	}
	for i := 0; i < slotCount; i++ {
		v.free[i] = slotCount - 1 - i
	}
	if enableMprotect {
		slog.Debug("buffer: ENABLE_MPROTECT requested but not available without cgo; slots remain accessible", "class", class)
	}
	return v
}

// Capacity returns the total number of slots reserved for this class.
func (v *VolatileRegion) Capacity() int { return len(v.slots) }

// Acquire returns a free slot index and its backing byte slice, allocating
// the slice lazily on first use of that slot. ok is false if the region is
// full.
func (v *VolatileRegion) Acquire() (slot int, data []byte, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := len(v.free)
	if n == 0 {
		return 0, nil, false
	}
	slot = v.free[n-1]
	v.free = v.free[:n-1]
	if v.slots[slot] == nil {
		v.slots[slot] = make([]byte, v.size)
	}
	return slot, v.slots[slot], true
}

// Release returns slot to the free set. It does not zero the backing
// bytes; a subsequent Acquire of the same slot observes stale contents
// until overwritten by a read-through, matching raw-memory-reuse semantics.
func (v *VolatileRegion) Release(slot int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if slot < 0 || slot >= len(v.slots) {
		panic(fmt.Sprintf("buffer: volatile region: slot %d out of range", slot))
	}
	v.free = append(v.free, slot)
}
