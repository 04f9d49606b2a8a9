package buffer

import (
	"sync"
	"time"

	"github.com/novadb/novasql/pkg/clockx"
)

// EvictQueue is the buffer manager's FIFO of eviction candidates. It wraps
// pkg/clockx.Clock behind a PageID-typed API, keeping the teacher's
// two-layer split: a generic policy engine in pkg/ (clockx, rewritten to
// version-validated FIFO per spec.md 4.6) and a thin adapter here, the same
// role replacer_clock_adapter.go played for the teacher's CLOCK policy.
type EvictQueue struct {
	mu sync.Mutex
	c  *clockx.Clock
}

// NewEvictQueue creates a queue with an advisory capacity hint.
func NewEvictQueue(capacityHint int) *EvictQueue {
	return &EvictQueue{c: clockx.New(capacityHint)}
}

// Enqueue marks id as a tentative eviction candidate, stamped with the
// version it had at the moment its pin count reached zero.
func (q *EvictQueue) Enqueue(id PageID, version int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.c.Enqueue(int(id), uint64(version))
}

// Remove drops every queued entry for id, used when a page is dropped
// outright (Deallocate) rather than evicted through the normal path.
func (q *EvictQueue) Remove(id PageID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.c.Remove(int(id))
}

// TryEvict pops candidates until it finds one whose stamped version still
// matches liveVersion(id), or the queue runs dry. Stale entries (liveVersion
// returns a different value, or ok=false meaning the page is no longer
// tracked at all) are discarded, not repaired, per spec.md 4.6.
func (q *EvictQueue) TryEvict(liveVersion func(id PageID) (version int64, ok bool)) (PageID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		rawID, version, ok := q.c.Dequeue()
		if !ok {
			return InvalidPageID, false
		}
		id := PageID(rawID)
		live, stillTracked := liveVersion(id)
		if stillTracked && live == int64(version) {
			return id, true
		}
		// stale: loop and try the next candidate
	}
}

// Purge runs the idle sweep described in spec.md 4.6, dropping entries
// whose stamped version no longer matches the live frame. Called
// periodically by Manager.runPurgeLoop rather than on the hot path.
func (q *EvictQueue) Purge(liveVersion func(id PageID) (version int64, ok bool)) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.c.Purge(func(rawID int, version uint64) bool {
		live, ok := liveVersion(PageID(rawID))
		return !ok || live != int64(version)
	})
}

// Len returns the number of queued candidates, stale or not.
func (q *EvictQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.c.Len()
}

// DefaultPurgeInterval is the fixed interval Manager uses for the idle
// purge sweep.
const DefaultPurgeInterval = 30 * time.Second
