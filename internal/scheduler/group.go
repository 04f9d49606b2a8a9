package scheduler

import "fmt"

// smallBatchFactor bounds the "small batch" short-circuit in
// DetermineGroupCount: batches at or below worker_count * smallBatchFactor
// skip load-sensitivity entirely and get one group per task (up to the
// worker count), matching spec.md 4.12's "short-circuits to worker_count
// when |tasks| <= small_threshold".
const smallBatchFactor = 4

// DetermineGroupCount is the grouping policy of spec.md 4.12: low load
// favors many groups (up to one per worker, maximizing parallelism);
// high load favors fewer groups (capping queue pressure). load is an
// approximate 0..1 measure of current queue occupancy, typically
// Scheduler.Load().
func DetermineGroupCount(topology Topology, numTasks int, load float64) int {
	workers := topology.TotalWorkers()
	if workers < 1 {
		workers = 1
	}
	if numTasks <= 0 {
		return workers
	}

	smallThreshold := workers * smallBatchFactor
	if numTasks <= smallThreshold {
		if numTasks < workers {
			return numTasks
		}
		return workers
	}

	if load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}
	groups := int(float64(workers) * (1 - load))
	if groups < 1 {
		groups = 1
	}
	return groups
}

// GroupTasks transforms an independent batch into numGroups linear chains:
// task[k] becomes the predecessor of task[k+numGroups], for every index
// that has one. This caps the number of simultaneously-ready tasks at
// numGroups regardless of batch size (spec.md 4.12, "Grouping").
//
// Tasks must not have been scheduled yet; GroupTasks only wires
// dependencies; the caller schedules every task afterward exactly as it
// would an ungrouped batch.
func GroupTasks(tasks []*Task, numGroups int) error {
	if numGroups <= 0 {
		return fmt.Errorf("scheduler: numGroups must be positive, got %d", numGroups)
	}
	if numGroups >= len(tasks) {
		return nil
	}
	for i := numGroups; i < len(tasks); i++ {
		if err := tasks[i-numGroups].SetAsPredecessorOf(tasks[i]); err != nil {
			return err
		}
	}
	return nil
}
