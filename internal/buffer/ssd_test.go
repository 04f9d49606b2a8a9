package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSDRegion_ReadPage_NeverWrittenIsAllZero(t *testing.T) {
	ssd, err := NewSSDRegion(t.TempDir())
	require.NoError(t, err)
	defer ssd.Close()

	id := NewPageID(0, 3)
	dst := make([]byte, SizeOf(0))
	for i := range dst {
		dst[i] = 0xFF
	}
	require.NoError(t, ssd.ReadPage(id, dst))
	for _, b := range dst {
		require.Equal(t, byte(0), b)
	}
}

func TestSSDRegion_WriteThenRead_RoundTrips(t *testing.T) {
	ssd, err := NewSSDRegion(t.TempDir())
	require.NoError(t, err)
	defer ssd.Close()

	id := NewPageID(1, 2)
	src := make([]byte, SizeOf(1))
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, ssd.WritePage(id, src))

	dst := make([]byte, SizeOf(1))
	require.NoError(t, ssd.ReadPage(id, dst))
	require.Equal(t, src, dst)
}

func TestSSDRegion_SeparateSizeClassesUseSeparateSegments(t *testing.T) {
	ssd, err := NewSSDRegion(t.TempDir())
	require.NoError(t, err)
	defer ssd.Close()

	smallID := NewPageID(0, 0)
	bigID := NewPageID(1, 0)

	srcSmall := make([]byte, SizeOf(0))
	for i := range srcSmall {
		srcSmall[i] = 0xAA
	}
	require.NoError(t, ssd.WritePage(smallID, srcSmall))

	dst := make([]byte, SizeOf(1))
	require.NoError(t, ssd.ReadPage(bigID, dst))
	for _, b := range dst {
		require.Equal(t, byte(0), b)
	}
}

func TestSSDRegion_ReadPage_RejectsWrongSizedBuffer(t *testing.T) {
	ssd, err := NewSSDRegion(t.TempDir())
	require.NoError(t, err)
	defer ssd.Close()

	err = ssd.ReadPage(NewPageID(0, 0), make([]byte, 1))
	require.Error(t, err)
}

func TestSSDRegion_WritePage_RejectsWrongSizedBuffer(t *testing.T) {
	ssd, err := NewSSDRegion(t.TempDir())
	require.NoError(t, err)
	defer ssd.Close()

	err = ssd.WritePage(NewPageID(0, 0), make([]byte, 1))
	require.Error(t, err)
}
