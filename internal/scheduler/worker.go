package scheduler

import (
	"context"
	"time"
)

// stealPollInterval bounds how long a worker blocks before re-checking its
// own queue even without a wake signal, covering the narrow race between
// a peer's Push and this worker parking on Wake().
const stealPollInterval = 2 * time.Millisecond

// Worker is one goroutine bound to a NUMA node (spec.md 4.11): pop local
// work, steal from peers when empty, park on the node's wake channel when
// the whole scheduler has nothing for it. All dispatch/execute logic lives
// on NodeQueueScheduler so the same code path serves both a Worker's loop
// and a caller's cooperative WaitForTasks.
type Worker struct {
	node  int
	id    int
	sched *NodeQueueScheduler
}

func newWorker(node, id int, s *NodeQueueScheduler) *Worker {
	return &Worker{node: node, id: id, sched: s}
}

// loop runs until ctx is cancelled (Scheduler.Finish).
func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if w.sched.tryRunOne(w.node) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.sched.queues[w.node].Wake():
		case <-time.After(stealPollInterval):
		}
	}
}
