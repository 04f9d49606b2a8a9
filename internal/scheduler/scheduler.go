package scheduler

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
)

// maxInlineDepth caps recursive inline dispatch of newly-ready successors
// (spec.md 4.11): shallow chains run to completion on the same goroutine
// that produced them, avoiding a queue round-trip; once the recursion gets
// deep (a long or bushy chain) further successors are handed back to a
// queue so one goroutine can't starve its peers and the call stack stays
// bounded.
const maxInlineDepth = 32

// Scheduler is the external interface a task producer schedules against
// (spec.md 6). Immediate is a synchronous, queue-free implementation
// useful for tests and tools; NodeQueueScheduler is the real NUMA-aware
// work-stealing engine.
type Scheduler interface {
	Begin() error
	Finish() error
	Schedule(t *Task) error
	WaitForTasks(tasks []*Task)
	Load() float64
}

// Immediate runs every task (and its newly-ready successors) synchronously
// on the caller's goroutine the moment it becomes ready. No queues, no
// workers, no stealing -- the degenerate one-worker case, grounded on the
// same markScheduled/tryBecomeReady/run contract the real scheduler uses.
type Immediate struct{}

// NewImmediate constructs an Immediate scheduler.
func NewImmediate() *Immediate { return &Immediate{} }

func (s *Immediate) Begin() error  { return nil }
func (s *Immediate) Finish() error { return nil }
func (s *Immediate) Load() float64 { return 0 }

func (s *Immediate) Schedule(t *Task) error {
	if t.markScheduled() {
		return nil
	}
	if t.tryBecomeReady() {
		s.runReady(t)
	}
	return nil
}

// runReady executes t, which the caller has already flipped to READY
// (either Schedule just did so, or Task.run already did so for a
// successor it returned) -- it must not call tryBecomeReady again, since
// that latch is a CAS meant to fire exactly once per task.
func (s *Immediate) runReady(t *Task) {
	for _, ready := range t.run() {
		s.runReady(ready)
	}
}

// WaitForTasks is a no-op on Immediate: by the time Schedule returns, every
// task reachable through it has already run to completion.
func (s *Immediate) WaitForTasks(tasks []*Task) {}

var _ Scheduler = (*Immediate)(nil)
var _ Scheduler = (*NodeQueueScheduler)(nil)

// NodeQueueScheduler is the NUMA-aware work-stealing scheduler of spec.md
// 4.9-4.12: one Queue per node, Topology.TotalWorkers() goroutines rotating
// between their local queue and their peers', a conc.WaitGroup supervising
// the fleet so a panicking task propagates out of Finish rather than
// vanishing silently.
//
// Go binding: grounded on kasuganosora-sqlexec's workerpool.Pool for the
// Start/Close/panic-recovery shape, generalized from one flat channel to
// per-node priority queues with stealing.
type NodeQueueScheduler struct {
	topo    Topology
	queues  []*Queue
	workers []*Worker

	running atomic.Bool
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
}

// NewNodeQueueScheduler constructs a scheduler over the given topology. It
// does not start any workers; call Begin for that.
func NewNodeQueueScheduler(topo Topology) *NodeQueueScheduler {
	if topo.NumNodes < 1 {
		topo.NumNodes = 1
	}
	if topo.WorkersPerNode < 1 {
		topo.WorkersPerNode = 1
	}
	queues := make([]*Queue, topo.NumNodes)
	for i := range queues {
		queues[i] = NewQueue()
	}
	return &NodeQueueScheduler{topo: topo, queues: queues}
}

// Begin launches the worker fleet. Calling Begin twice without an
// intervening Finish returns ErrAlreadyRunning.
func (s *NodeQueueScheduler) Begin() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg = conc.NewWaitGroup()

	s.workers = make([]*Worker, 0, s.topo.TotalWorkers())
	for node := 0; node < s.topo.NumNodes; node++ {
		for i := 0; i < s.topo.WorkersPerNode; i++ {
			w := newWorker(node, i, s)
			s.workers = append(s.workers, w)
			s.wg.Go(func() { w.loop(ctx) })
		}
	}
	return nil
}

// Finish stops accepting new dispatch targets, cancels every worker, and
// waits for the fleet to drain. A task payload that panicked re-panics
// here, since conc.WaitGroup.Wait re-raises the first panic it caught.
func (s *NodeQueueScheduler) Finish() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	s.cancel()
	s.wg.Wait()
	return nil
}

// Schedule hands t to the scheduler: marks it SCHEDULED and, if its
// predecessor count is already zero, dispatches it immediately. A task
// with pending predecessors is dispatched later, by whichever predecessor
// finishes last (Task.run, via tryBecomeReady).
func (s *NodeQueueScheduler) Schedule(t *Task) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	if t.markScheduled() {
		return nil
	}
	if t.tryBecomeReady() {
		s.dispatch(t, NoPreferredNode)
	}
	return nil
}

// DetermineQueueID picks the node to enqueue onto (spec.md 4.12): an
// explicit preferred node wins outright; otherwise the calling worker's own
// node keeps locality; otherwise the least-loaded node balances the fleet.
func (s *NodeQueueScheduler) DetermineQueueID(preferred, callerNode int) int {
	if preferred != NoPreferredNode && preferred >= 0 && preferred < len(s.queues) {
		return preferred
	}
	if callerNode != NoPreferredNode && callerNode >= 0 && callerNode < len(s.queues) {
		return callerNode
	}
	best, bestLen := 0, s.queues[0].Len()
	for i := 1; i < len(s.queues); i++ {
		if l := s.queues[i].Len(); l < bestLen {
			best, bestLen = i, l
		}
	}
	return best
}

func (s *NodeQueueScheduler) dispatch(t *Task, callerNode int) {
	id := s.DetermineQueueID(t.PreferredNode, callerNode)
	s.queues[id].Push(t)
}

// tryRunOne pops one task local to node (falling back to stealing from
// peers) and runs it to completion, including any newly-ready successors.
// It returns false when there is nothing to do right now.
func (s *NodeQueueScheduler) tryRunOne(node int) bool {
	if t, ok := s.queues[node].TryPop(); ok {
		s.execute(t, node, 0)
		return true
	}
	if t, ok := s.stealFor(node); ok {
		s.execute(t, node, 0)
		return true
	}
	return false
}

func (s *NodeQueueScheduler) stealFor(node int) (*Task, bool) {
	n := len(s.queues)
	for i := 1; i < n; i++ {
		peer := (node + i) % n
		if t, ok := s.queues[peer].TryDequeueStealable(); ok {
			return t, true
		}
	}
	return nil, false
}

// execute runs t and recursively inlines its newly-ready successors up to
// maxInlineDepth, beyond which it hands them back to a queue (spec.md
// 4.11).
func (s *NodeQueueScheduler) execute(t *Task, node, depth int) {
	for _, ready := range t.run() {
		if depth < maxInlineDepth {
			s.execute(ready, node, depth+1)
		} else {
			s.dispatch(ready, node)
		}
	}
}

// WaitForTasks blocks the calling goroutine until every task in the list
// has reached DONE, helping drain the queues in the meantime rather than
// idling (spec.md 4.11's cooperative wait, needed for nested task spawns
// that block on their own children).
//
// The caller's own node is not known here -- a task payload is a bare
// func() with no node argument threaded through -- so this tries every
// node's queue in turn rather than hardcoding node 0. That matters for
// correctness, not just fairness: tryRunOne(node) pops node's own queue
// with TryPop, which (unlike TryDequeueStealable) never filters on
// Task.Stealable, so a non-stealable task queued on a node whose one
// worker is itself blocked in a nested WaitForTasks can still be reached
// and run from here (spec.md 4.9's "must keep making progress on other
// tasks to avoid deadlock").
func (s *NodeQueueScheduler) WaitForTasks(tasks []*Task) {
	for {
		if allDone(tasks) {
			return
		}
		progressed := false
		for node := 0; node < len(s.queues); node++ {
			if s.tryRunOne(node) {
				progressed = true
				break
			}
		}
		if !progressed {
			runtime.Gosched()
		}
	}
}

func allDone(tasks []*Task) bool {
	for _, t := range tasks {
		if t.State() != Done {
			return false
		}
	}
	return true
}

// Load approximates current fleet occupancy in [0, 1] for
// DetermineGroupCount's load sensitivity: total queued tasks relative to a
// nominal "comfortably full" depth of 4 tasks per worker.
func (s *NodeQueueScheduler) Load() float64 {
	total := 0
	for _, q := range s.queues {
		total += q.Len()
	}
	workers := s.topo.TotalWorkers()
	if workers < 1 {
		workers = 1
	}
	load := float64(total) / float64(workers*4)
	if load > 1 {
		load = 1
	}
	return load
}
