package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageTable_Find_MissingReturnsFalse(t *testing.T) {
	pt := NewPageTable()
	_, ok := pt.Find(NewPageID(0, 1))
	require.False(t, ok)
}

func TestPageTable_InsertIfAbsent_FirstInsertWins(t *testing.T) {
	pt := NewPageTable()
	id := NewPageID(0, 1)
	f := NewFrame(id)

	actual, inserted := pt.InsertIfAbsent(id, f)
	require.True(t, inserted)
	require.Same(t, f, actual)
}

func TestPageTable_InsertIfAbsent_SecondInsertReturnsExisting(t *testing.T) {
	pt := NewPageTable()
	id := NewPageID(0, 1)
	first := NewFrame(id)
	second := NewFrame(id)

	pt.InsertIfAbsent(id, first)
	actual, inserted := pt.InsertIfAbsent(id, second)
	require.False(t, inserted)
	require.Same(t, first, actual)
}

func TestPageTable_Erase_RemovesEntry(t *testing.T) {
	pt := NewPageTable()
	id := NewPageID(0, 1)
	pt.InsertIfAbsent(id, NewFrame(id))
	pt.Erase(id)

	_, ok := pt.Find(id)
	require.False(t, ok)
}

func TestPageTable_Len_CountsEntries(t *testing.T) {
	pt := NewPageTable()
	require.Equal(t, 0, pt.Len())

	pt.InsertIfAbsent(NewPageID(0, 1), NewFrame(NewPageID(0, 1)))
	pt.InsertIfAbsent(NewPageID(0, 2), NewFrame(NewPageID(0, 2)))
	require.Equal(t, 2, pt.Len())

	pt.Erase(NewPageID(0, 1))
	require.Equal(t, 1, pt.Len())
}
