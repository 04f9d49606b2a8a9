package scheduler

import "sync"

// Queue is one NUMA node's work queue: two priority lanes (spec.md 4.10),
// push/try-pop for the owning workers, try-steal for peers. Grounded on
// the teacher's channel-submission shape (kasuganosora-sqlexec's
// workerpool.Pool.tasks), generalized to two priority lanes guarded by a
// mutex instead of one buffered channel, plus a small wake channel playing
// the role of the semaphore a blocked worker waits on.
type Queue struct {
	mu   sync.Mutex
	high []*Task
	def  []*Task
	wake chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push enqueues t in the lane matching its priority and wakes one blocked
// worker, if any.
func (q *Queue) Push(t *Task) {
	q.mu.Lock()
	if t.Priority == PriorityHigh {
		q.high = append(q.high, t)
	} else {
		q.def = append(q.def, t)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// TryPop returns the oldest High-priority task if any, else the oldest
// Default-priority task, else ok=false.
func (q *Queue) TryPop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.high) > 0 {
		t := q.high[0]
		q.high = q.high[1:]
		return t, true
	}
	if len(q.def) > 0 {
		t := q.def[0]
		q.def = q.def[1:]
		return t, true
	}
	return nil, false
}

// TryDequeueStealable pops the newest stealable task, scanning Default
// before High (stealing from the "far" end of the local lanes to keep
// contention with the owner's TryPop, which pops from the front, low).
// Only tasks flagged Stealable are ever returned (spec.md 4.10).
func (q *Queue) TryDequeueStealable() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t, ok := stealFromTail(&q.def); ok {
		return t, true
	}
	if t, ok := stealFromTail(&q.high); ok {
		return t, true
	}
	return nil, false
}

func stealFromTail(lane *[]*Task) (*Task, bool) {
	s := *lane
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Stealable {
			t := s[i]
			*lane = append(s[:i], s[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

// Len approximates queue depth for load-sensitive scheduling decisions
// (spec.md 4.12, "least-loaded node").
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.def)
}

// Wake returns the channel a worker blocks on when both lanes are empty.
func (q *Queue) Wake() <-chan struct{} { return q.wake }
