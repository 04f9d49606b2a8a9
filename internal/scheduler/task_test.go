package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_NewTask_DefaultsToCreatedAndStealable(t *testing.T) {
	called := false
	task := NewTask(func() { called = true })

	require.Equal(t, Created, task.State())
	require.True(t, task.Stealable)
	require.Equal(t, NoPreferredNode, task.PreferredNode)
	require.False(t, called)
}

func TestTask_SetAsPredecessorOf_IncrementsSuccessorCount(t *testing.T) {
	a := NewTask(func() {})
	b := NewTask(func() {})

	require.NoError(t, a.SetAsPredecessorOf(b))
	require.Equal(t, int32(1), b.predecessorCnt.Load())
}

func TestTask_SetAsPredecessorOf_RejectedOnceRunning(t *testing.T) {
	a := NewTask(func() {})
	b := NewTask(func() {})
	a.markScheduled()
	a.tryBecomeReady()
	a.run()

	require.Error(t, a.SetAsPredecessorOf(b))
}

func TestTask_TryBecomeReady_RequiresBothScheduledAndZeroPredecessors(t *testing.T) {
	task := NewTask(func() {})
	pred := NewTask(func() {})
	require.NoError(t, pred.SetAsPredecessorOf(task))

	// Scheduled but still has a pending predecessor: not ready yet.
	task.markScheduled()
	require.False(t, task.tryBecomeReady())
	require.Equal(t, Scheduled, task.State())

	// Predecessor finishes, decrementing the count to zero, and hands back
	// the now-ready successor.
	pred.markScheduled()
	pred.tryBecomeReady()
	ready := pred.run()

	require.Len(t, ready, 1)
	require.Same(t, task, ready[0])
	require.Equal(t, Ready, task.State())
}

func TestTask_TryBecomeReady_IsIdempotent(t *testing.T) {
	task := NewTask(func() {})
	task.markScheduled()

	require.True(t, task.tryBecomeReady())
	require.False(t, task.tryBecomeReady())
}

func TestTask_Run_ExecutesPayloadExactlyOnce(t *testing.T) {
	count := 0
	task := NewTask(func() { count++ })
	task.markScheduled()
	task.tryBecomeReady()

	task.run()

	require.Equal(t, 1, count)
	require.Equal(t, Done, task.State())
}

// TestTask_LinearChain_S1 exercises scenario S1: a chain t1 -> t2 -> t3
// scheduled out of topological order (t3, t1, t2) must still execute in
// dependency order exactly once each.
func TestTask_LinearChain_S1(t *testing.T) {
	var order []int
	t1 := NewTask(func() { order = append(order, 1) })
	t2 := NewTask(func() { order = append(order, 2) })
	t3 := NewTask(func() { order = append(order, 3) })

	require.NoError(t, t1.SetAsPredecessorOf(t2))
	require.NoError(t, t2.SetAsPredecessorOf(t3))

	sched := NewImmediate()
	require.NoError(t, sched.Begin())
	defer sched.Finish()

	// Scheduled out of order: t3, t1, t2.
	require.NoError(t, sched.Schedule(t3))
	require.NoError(t, sched.Schedule(t1))
	require.NoError(t, sched.Schedule(t2))

	require.Equal(t, []int{1, 2, 3}, order)
	require.Equal(t, Done, t1.State())
	require.Equal(t, Done, t2.State())
	require.Equal(t, Done, t3.State())
}

// TestTask_Diamond_S2 exercises scenario S2: a -> {b, c} -> d. d must run
// exactly once, only after both b and c have completed.
func TestTask_Diamond_S2(t *testing.T) {
	var order []string
	a := NewTask(func() { order = append(order, "a") })
	b := NewTask(func() { order = append(order, "b") })
	c := NewTask(func() { order = append(order, "c") })
	dRuns := 0
	d := NewTask(func() { dRuns++; order = append(order, "d") })

	require.NoError(t, a.SetAsPredecessorOf(b))
	require.NoError(t, a.SetAsPredecessorOf(c))
	require.NoError(t, b.SetAsPredecessorOf(d))
	require.NoError(t, c.SetAsPredecessorOf(d))

	sched := NewImmediate()
	require.NoError(t, sched.Begin())
	defer sched.Finish()

	require.NoError(t, sched.Schedule(d))
	require.NoError(t, sched.Schedule(b))
	require.NoError(t, sched.Schedule(c))
	require.NoError(t, sched.Schedule(a))

	require.Equal(t, 1, dRuns)
	require.Equal(t, "a", order[0])
	require.Equal(t, "d", order[len(order)-1])
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, order)
}
