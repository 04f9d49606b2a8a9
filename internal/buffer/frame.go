package buffer

import (
	"fmt"

	"go.uber.org/atomic"

	locking "github.com/novadb/novasql/internal/lock"
)

// State is one of the five states a Frame may occupy.
type State uint8

const (
	Evicted State = iota
	Loading
	Resident
	MarkedForEviction
	LockedExclusive
)

func (s State) String() string {
	switch s {
	case Evicted:
		return "EVICTED"
	case Loading:
		return "LOADING"
	case Resident:
		return "RESIDENT"
	case MarkedForEviction:
		return "MARKED_FOR_EVICTION"
	case LockedExclusive:
		return "LOCKED_EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// stateShift/versionMask pack {state, version} into a single int64 so every
// transition can be validated and committed with one CAS, per spec.md 4.4.
const (
	stateShift  = 61
	versionMask = (int64(1) << stateShift) - 1
)

func pack(s State, version int64) int64 {
	return int64(s)<<stateShift | (version & versionMask)
}

func unpack(raw int64) (State, int64) {
	return State(uint64(raw) >> stateShift), raw & versionMask
}

// ErrStaleTransition is returned by TransitionTo when a concurrent
// transition raced ahead of the caller's snapshot.
var ErrStaleTransition = fmt.Errorf("buffer: frame state changed concurrently")

// Frame is the per-page metadata and state machine. Frames live in a dense
// array owned by the buffer manager (arena + index, per spec.md 9); nothing
// outside this package holds a raw pointer to one across a page-table
// lookup -- callers reacquire the frame by PageID.
type Frame struct {
	PageID PageID

	stateAndVersion atomic.Int64
	pin             *locking.RefCount
	dirty           atomic.Bool

	// Slot identifies this frame's backing bytes within its size class's
	// VolatileRegion; valid iff the frame is RESIDENT or MARKED_FOR_EVICTION.
	Slot int
	Data []byte

	// Tier records which VolatileRegion (DRAM or NUMA) currently backs this
	// frame, consulted by the migration policy (spec.md 9.3).
	Tier Tier

	// accesses counts consecutive hits while resident in the NUMA tier,
	// reset on promotion to DRAM; backs the Lazy migration policy's
	// "promote on second access" rule.
	accesses atomic.Int32
}

// Tier identifies which volatile region backs a resident frame.
type Tier uint8

const (
	TierDram Tier = iota
	TierNuma
)

// RecordNumaAccess increments the frame's NUMA-tier access counter and
// returns the new count.
func (f *Frame) RecordNumaAccess() int32 { return f.accesses.Inc() }

// ResetNumaAccess clears the access counter, called after a promotion.
func (f *Frame) ResetNumaAccess() { f.accesses.Store(0) }

// NewFrame constructs an EVICTED frame for id with version 0.
func NewFrame(id PageID) *Frame {
	f := &Frame{
		PageID: id,
		pin:    locking.NewRefCount(0),
	}
	f.stateAndVersion.Store(pack(Evicted, 0))
	return f
}

// State returns the frame's current state.
func (f *Frame) State() State {
	s, _ := unpack(f.stateAndVersion.Load())
	return s
}

// Version returns the frame's current version.
func (f *Frame) Version() int64 {
	_, v := unpack(f.stateAndVersion.Load())
	return v
}

// Dirty reports whether the frame has been written since last write-back.
func (f *Frame) Dirty() bool { return f.dirty.Load() }

// SetDirty is called only by the pinning writer (single-writer discipline
// per spec.md 5); cleared only by the evictor under LOCKED_EXCLUSIVE.
func (f *Frame) SetDirty(v bool) { f.dirty.Store(v) }

// PinCount returns the current pin count.
func (f *Frame) PinCount() int32 { return f.pin.Get() }

// Pin increments the pin count. Returns the new count.
func (f *Frame) Pin() int32 { return f.pin.Inc() }

// Unpin decrements the pin count. It panics (a programming error per
// spec.md 7) if the count would go negative. Returns true if the count
// reached zero.
func (f *Frame) Unpin() bool { return f.pin.Dec() }

// MarkResidentFresh moves a brand-new frame straight to RESIDENT: the
// EVICTED->RESIDENT edge spec.md 4.4's transition table doesn't name, since
// that table governs an existing page's read-through/eviction cycle, not a
// freshly allocated page's "created by new_page -> RESIDENT" lifecycle
// (spec.md 4.3). No CAS validation against `from` is needed -- nothing else
// can have observed this frame before the caller installs it in the page
// table.
func (f *Frame) MarkResidentFresh() {
	_, version := unpack(f.stateAndVersion.Load())
	f.stateAndVersion.Store(pack(Resident, version+1))
}

// TransitionTo attempts state `from` -> `to`, bumping the version on
// success. It fails with ErrStaleTransition if the frame's state is not
// exactly `from` at the moment of the CAS -- the caller must re-read and
// decide whether to retry, matching the "validate via CAS before
// committing" rule in spec.md 4.4.
func (f *Frame) TransitionTo(from, to State) error {
	for {
		raw := f.stateAndVersion.Load()
		state, version := unpack(raw)
		if state != from {
			return ErrStaleTransition
		}
		next := pack(to, version+1)
		if f.stateAndVersion.CompareAndSwap(raw, next) {
			return nil
		}
	}
}
