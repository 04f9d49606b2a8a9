package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvictQueue_TryEvict_ReturnsFalseWhenEmpty(t *testing.T) {
	q := NewEvictQueue(4)
	_, ok := q.TryEvict(func(PageID) (int64, bool) { return 0, true })
	require.False(t, ok)
}

func TestEvictQueue_TryEvict_ReturnsFreshestLiveEntry(t *testing.T) {
	q := NewEvictQueue(4)
	id := NewPageID(0, 1)
	q.Enqueue(id, 7)

	live := map[PageID]int64{id: 7}
	got, ok := q.TryEvict(func(pid PageID) (int64, bool) {
		v, ok := live[pid]
		return v, ok
	})
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestEvictQueue_TryEvict_SkipsStaleVersionedEntries(t *testing.T) {
	q := NewEvictQueue(4)
	stale := NewPageID(0, 1)
	fresh := NewPageID(0, 2)
	q.Enqueue(stale, 1)
	q.Enqueue(fresh, 5)

	live := map[PageID]int64{stale: 2, fresh: 5} // stale's stamped version no longer matches
	got, ok := q.TryEvict(func(pid PageID) (int64, bool) {
		v, ok := live[pid]
		return v, ok
	})
	require.True(t, ok)
	require.Equal(t, fresh, got)
}

func TestEvictQueue_TryEvict_SkipsUntrackedEntries(t *testing.T) {
	q := NewEvictQueue(4)
	id := NewPageID(0, 1)
	q.Enqueue(id, 1)

	_, ok := q.TryEvict(func(PageID) (int64, bool) { return 0, false })
	require.False(t, ok)
}

func TestEvictQueue_Remove_DropsAllEntriesForID(t *testing.T) {
	q := NewEvictQueue(4)
	id := NewPageID(0, 1)
	q.Enqueue(id, 1)
	q.Enqueue(id, 2)
	q.Remove(id)

	_, ok := q.TryEvict(func(PageID) (int64, bool) { return 2, true })
	require.False(t, ok)
}

func TestEvictQueue_Purge_RemovesStaleEntriesAndReportsCount(t *testing.T) {
	q := NewEvictQueue(4)
	stale := NewPageID(0, 1)
	live := NewPageID(0, 2)
	q.Enqueue(stale, 1)
	q.Enqueue(live, 2)

	liveVersions := map[PageID]int64{stale: 99, live: 2}
	n := q.Purge(func(pid PageID) (int64, bool) {
		v, ok := liveVersions[pid]
		return v, ok
	})
	require.Equal(t, 1, n)
	require.Equal(t, 1, q.Len())
}

func TestEvictQueue_Len_CountsQueuedRegardlessOfStaleness(t *testing.T) {
	q := NewEvictQueue(4)
	q.Enqueue(NewPageID(0, 1), 1)
	q.Enqueue(NewPageID(0, 2), 1)
	require.Equal(t, 2, q.Len())
}
