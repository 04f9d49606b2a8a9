package clockx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClock_New_DefaultCapacity(t *testing.T) {
	c := New(0)
	require.NotNil(t, c)
	require.Equal(t, 1, c.Capacity())
	require.Equal(t, 0, c.Len())
}

func TestClock_EnqueueDequeue_FIFOOrder(t *testing.T) {
	c := New(3)

	c.Enqueue(1, 10)
	c.Enqueue(2, 20)
	c.Enqueue(3, 30)
	require.Equal(t, 3, c.Len())

	id, version, ok := c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, id)
	require.Equal(t, uint64(10), version)
	require.Equal(t, 2, c.Len())

	id, version, ok = c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 2, id)
	require.Equal(t, uint64(20), version)

	id, version, ok = c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 3, id)
	require.Equal(t, uint64(30), version)

	require.Equal(t, 0, c.Len())
}

func TestClock_Dequeue_EmptyQueue(t *testing.T) {
	c := New(2)

	id, version, ok := c.Dequeue()
	require.False(t, ok)
	require.Equal(t, 0, id)
	require.Equal(t, uint64(0), version)
}

func TestClock_Dequeue_StaleVersionIsCallerResponsibility(t *testing.T) {
	c := New(2)

	// Same id enqueued twice, as happens when a frame is unpinned to zero
	// more than once. Both entries come back; the caller is the one who
	// must reject the stale one by comparing against the live version.
	c.Enqueue(5, 1)
	c.Enqueue(5, 2)
	require.Equal(t, 2, c.Len())

	id, version, ok := c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 5, id)
	require.Equal(t, uint64(1), version)

	id, version, ok = c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 5, id)
	require.Equal(t, uint64(2), version)
}

func TestClock_Remove_DropsAllEntriesForID(t *testing.T) {
	c := New(3)

	c.Enqueue(1, 1)
	c.Enqueue(2, 1)
	c.Enqueue(1, 2)
	require.Equal(t, 3, c.Len())

	removed := c.Remove(1)
	require.Equal(t, 2, removed)
	require.Equal(t, 1, c.Len())

	id, _, ok := c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 2, id)

	// Removing an id with no entries is a no-op.
	require.Equal(t, 0, c.Remove(99))
}

func TestClock_Purge_RemovesOnlyStaleEntries(t *testing.T) {
	c := New(4)

	c.Enqueue(1, 1)
	c.Enqueue(2, 1)
	c.Enqueue(3, 1)
	require.Equal(t, 3, c.Len())

	liveVersion := map[int]uint64{1: 1, 2: 99, 3: 1}
	removed := c.Purge(func(id int, version uint64) bool {
		return liveVersion[id] != version
	})
	require.Equal(t, 1, removed)
	require.Equal(t, 2, c.Len())

	id, _, ok := c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, id)

	id, _, ok = c.Dequeue()
	require.True(t, ok)
	require.Equal(t, 3, id)
}

func TestClock_Purge_EmptyQueueIsNoop(t *testing.T) {
	c := New(2)
	removed := c.Purge(func(id int, version uint64) bool { return true })
	require.Equal(t, 0, removed)
	require.Equal(t, 0, c.Len())
}
