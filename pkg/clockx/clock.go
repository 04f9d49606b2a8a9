// Package clockx implements the eviction-candidate queue used by the buffer
// pool: a FIFO of tentative victims, each stamped with the version their
// owning frame had at the moment they were enqueued. The queue is a hint,
// not an authority — a popped entry is only a real victim if its stamped
// version still matches the frame's current version; staleness is resolved
// by the caller, not by this package.
//
// (Earlier revisions of this package implemented ref-bit CLOCK/second-chance
// replacement. The buffer pool now uses plain FIFO-with-validation instead —
// the policy changed, but the package keeps its name and its role as a
// narrow, swappable policy engine sitting behind an adapter.)
package clockx

import "container/list"

type entry struct {
	id      int
	version uint64
}

// Clock is a FIFO of eviction candidates. It is not internally
// synchronized: callers that need concurrent access (the buffer manager)
// hold their own lock around the whole check-then-act sequence, the same
// way the rest of the frame table is guarded.
type Clock struct {
	capacity int
	order    *list.List
	byID     map[int][]*list.Element
}

// New creates an empty queue. capacity is advisory (used only to size the
// initial index map); the queue itself grows as needed.
func New(capacity int) *Clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &Clock{
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[int][]*list.Element, capacity),
	}
}

func (c *Clock) Capacity() int { return c.capacity }

// Len returns the number of candidate entries currently queued (may include
// stale entries not yet purged).
func (c *Clock) Len() int { return c.order.Len() }

// Enqueue appends a new candidate. The same id may be enqueued multiple
// times over its lifetime (once per unpin-to-zero); older entries for the
// same id become stale once the frame's version advances past them.
func (c *Clock) Enqueue(id int, version uint64) {
	e := c.order.PushBack(entry{id: id, version: version})
	c.byID[id] = append(c.byID[id], e)
}

// Dequeue pops the oldest candidate. The caller must validate the returned
// version against the frame's live version before treating it as a victim.
func (c *Clock) Dequeue() (id int, version uint64, ok bool) {
	front := c.order.Front()
	if front == nil {
		return 0, 0, false
	}
	c.order.Remove(front)
	ent := front.Value.(entry)
	c.forgetElement(ent.id, front)
	return ent.id, ent.version, true
}

// Remove drops every queued entry for id (e.g. the page was dropped from
// the pool outright rather than evicted through the normal path). Returns
// the number of entries removed.
func (c *Clock) Remove(id int) int {
	elems := c.byID[id]
	for _, e := range elems {
		c.order.Remove(e)
	}
	n := len(elems)
	delete(c.byID, id)
	return n
}

// Purge runs the idle sweep: it removes every queued entry for which stale
// reports true, bounding queue length even when eviction pressure is low.
// Returns the number of entries removed.
func (c *Clock) Purge(stale func(id int, version uint64) bool) int {
	removed := 0
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		ent := e.Value.(entry)
		if stale(ent.id, ent.version) {
			c.order.Remove(e)
			c.forgetElement(ent.id, e)
			removed++
		}
		e = next
	}
	return removed
}

func (c *Clock) forgetElement(id int, target *list.Element) {
	elems := c.byID[id]
	for i, e := range elems {
		if e == target {
			elems = append(elems[:i], elems[i+1:]...)
			break
		}
	}
	if len(elems) == 0 {
		delete(c.byID, id)
	} else {
		c.byID[id] = elems
	}
}
