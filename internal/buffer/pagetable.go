package buffer

import "sync"

// PageTable is a concurrent PageID -> *Frame map. Readers are lock-free
// (sync.Map), matching the "concurrent hash map, readers lock-free" shape
// spec.md 4.5 asks for -- a conscious deviation from the teacher's
// single-mutex GlobalPool.table, recorded in DESIGN.md.
//
// Invariants: every LOADING/RESIDENT/MARKED_FOR_EVICTION frame is present;
// no EVICTED frame is present (callers are responsible for Erase on
// eviction and InsertIfAbsent before transitioning out of EVICTED).
type PageTable struct {
	m sync.Map // PageID -> *Frame
}

// NewPageTable constructs an empty table.
func NewPageTable() *PageTable { return &PageTable{} }

// Find returns the frame for id, if present.
func (t *PageTable) Find(id PageID) (*Frame, bool) {
	v, ok := t.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Frame), true
}

// InsertIfAbsent stores f under id unless an entry already exists, in
// which case the existing frame is returned instead (inserted is false).
func (t *PageTable) InsertIfAbsent(id PageID, f *Frame) (actual *Frame, inserted bool) {
	v, loaded := t.m.LoadOrStore(id, f)
	return v.(*Frame), !loaded
}

// Erase removes id from the table.
func (t *PageTable) Erase(id PageID) {
	t.m.Delete(id)
}

// Len returns the approximate number of entries (sync.Map has no exact
// O(1) count; this is diagnostic only, used by tests, not hot-path code).
func (t *PageTable) Len() int {
	n := 0
	t.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
