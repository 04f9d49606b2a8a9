package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVolatileRegion_Capacity_MatchesSlotCount(t *testing.T) {
	v := NewVolatileRegion(0, 4, false)
	require.Equal(t, 4, v.Capacity())
}

func TestVolatileRegion_NewVolatileRegion_ClampsNonPositiveSlotCount(t *testing.T) {
	v := NewVolatileRegion(0, 0, false)
	require.Equal(t, 1, v.Capacity())
}

func TestVolatileRegion_Acquire_ReturnsRightSizedSlice(t *testing.T) {
	v := NewVolatileRegion(2, 2, false)
	_, data, ok := v.Acquire()
	require.True(t, ok)
	require.Len(t, data, SizeOf(2))
}

func TestVolatileRegion_Acquire_FailsWhenExhausted(t *testing.T) {
	v := NewVolatileRegion(0, 1, false)
	_, _, ok := v.Acquire()
	require.True(t, ok)

	_, _, ok = v.Acquire()
	require.False(t, ok)
}

func TestVolatileRegion_Release_ReturnsSlotForReuse(t *testing.T) {
	v := NewVolatileRegion(0, 1, false)
	slot, _, ok := v.Acquire()
	require.True(t, ok)

	v.Release(slot)
	slot2, _, ok := v.Acquire()
	require.True(t, ok)
	require.Equal(t, slot, slot2)
}

func TestVolatileRegion_Release_PanicsOnOutOfRangeSlot(t *testing.T) {
	v := NewVolatileRegion(0, 1, false)
	require.Panics(t, func() { v.Release(5) })
	require.Panics(t, func() { v.Release(-1) })
}

func TestVolatileRegion_EnableMprotect_IsAcceptedWithoutEffect(t *testing.T) {
	v := NewVolatileRegion(0, 1, true)
	slot, data, ok := v.Acquire()
	require.True(t, ok)
	data[0] = 0xFF // still writable: no real mprotect enforcement
	require.Equal(t, byte(0xFF), data[0])
	v.Release(slot)
}
