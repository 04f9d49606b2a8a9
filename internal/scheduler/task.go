// Package scheduler implements the NUMA-aware work-stealing task scheduler
// over DAGs of tasks: the task node (this file), the per-node priority
// queue, the stealing worker, and the public Scheduler façade.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// State is one of the five states a Task may occupy.
type State uint8

const (
	Created State = iota
	Scheduled
	Ready
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Scheduled:
		return "SCHEDULED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Priority is the task-queue lane a task is dispatched to.
type Priority uint8

const (
	PriorityDefault Priority = iota
	PriorityHigh
)

// Payload is the contract consumed by the operator framework: a callable
// with no arguments, its result communicated through shared state the
// caller owns (spec.md 6).
type Payload func()

// NoPreferredNode means "let the scheduler decide" (spec.md 4.12,
// determine_queue_id).
const NoPreferredNode = -1

// Task is a DAG node: predecessors wired at construction via
// SetAsPredecessorOf, successors notified on completion. A task becomes
// READY once it has both been scheduled and its predecessor count reaches
// zero -- whichever of the two happens last is the one that makes it so
// (spec.md 4.9).
//
// Go binding: predecessorCnt is atomic.Int32 (go.uber.org/atomic);
// successors is a plain slice, append-only before scheduling and read-only
// after, per spec.md 5's shared-resource discipline -- no lock is taken to
// read it during execution.
type Task struct {
	ID uuid.UUID

	Priority      Priority
	PreferredNode int
	Stealable     bool
	payload       Payload

	predecessorCnt atomic.Int32
	scheduled      atomic.Bool
	readyLatch     atomic.Bool
	state          atomic.Uint32

	mu         sync.Mutex // guards successors until scheduling begins
	successors []*Task
}

// NewTask constructs a task in state CREATED with zero predecessors,
// stealable by default and bound to no particular node.
func NewTask(payload Payload) *Task {
	t := &Task{
		ID:            uuid.New(),
		PreferredNode: NoPreferredNode,
		Stealable:     true,
		payload:       payload,
	}
	t.state.Store(uint32(Created))
	return t
}

func (t *Task) State() State { return State(t.state.Load()) }

// SetAsPredecessorOf adds the reverse edge: t must complete before other
// becomes eligible to run. Legal only before either task begins executing
// (spec.md 4.9); returns an error otherwise rather than corrupting the
// count.
func (t *Task) SetAsPredecessorOf(other *Task) error {
	if t.State() >= Running || other.State() >= Running {
		return fmt.Errorf("scheduler: cannot add dependency once a task has started executing")
	}
	t.mu.Lock()
	t.successors = append(t.successors, other)
	t.mu.Unlock()
	other.predecessorCnt.Inc()
	return nil
}

// markScheduled records that the task has been handed to the scheduler.
// Scheduling an already-scheduled task is a no-op (spec.md 4.9).
func (t *Task) markScheduled() (already bool) {
	if !t.scheduled.CompareAndSwap(false, true) {
		return true
	}
	t.state.CompareAndSwap(uint32(Created), uint32(Scheduled))
	return false
}

// tryBecomeReady transitions the task to READY exactly once, the moment
// both "scheduled" and "predecessor count == 0" hold. It is called both by
// Schedule (in case there were no predecessors, or they had already
// finished) and by a predecessor's run() (in case this task was scheduled
// first and is only now unblocked).
func (t *Task) tryBecomeReady() bool {
	if !t.scheduled.Load() || t.predecessorCnt.Load() != 0 {
		return false
	}
	if !t.readyLatch.CompareAndSwap(false, true) {
		return false
	}
	t.state.Store(uint32(Ready))
	return true
}

// run invokes the payload exactly once, transitions to DONE, and notifies
// successors. It returns the subset of successors that became READY as a
// result (either because this was their last pending predecessor), for
// the calling Worker to dispatch -- inline or via a queue, per spec.md
// 4.11.
func (t *Task) run() []*Task {
	t.state.Store(uint32(Running))
	t.payload()
	t.state.Store(uint32(Done))

	t.mu.Lock()
	successors := t.successors
	t.mu.Unlock()

	var ready []*Task
	for _, s := range successors {
		if s.predecessorCnt.Dec() == 0 && s.tryBecomeReady() {
			ready = append(ready, s)
		}
	}
	return ready
}
