package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novadb/novasql/internal/buffer"
	"github.com/novadb/novasql/internal/config"
)

func newTestManager(t *testing.T, dramBytes int64) *buffer.Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Buffer.DramBufferPoolSize = dramBytes
	mgr, err := buffer.NewManager(&cfg.Buffer, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

// TestManager_PageRoundtrip_S4 exercises scenario S4: allocate, write,
// unpin, and re-read a page without ever forcing it out of DRAM.
func TestManager_PageRoundtrip_S4(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8) // 2 slots per size class

	ptr, err := mgr.Allocate(100, 8)
	require.NoError(t, err)

	data, err := mgr.GetPage(ptr.PageID)
	require.NoError(t, err)
	data[0] = 0x42
	require.NoError(t, mgr.Unpin(ptr.PageID, true))

	data2, err := mgr.GetPage(ptr.PageID)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), data2[0])
	require.NoError(t, mgr.Unpin(ptr.PageID, false))
	require.NoError(t, mgr.Unpin(ptr.PageID, false)) // drop Allocate's own pin
}

// TestManager_EvictionWritesBackAndPersists_S5 exercises scenario S5: with
// only two DRAM slots available for the class, a third allocation must
// evict the coldest (oldest-unpinned) page, write its dirty bytes to SSD,
// and a later GetPage against the evicted id must read the same bytes back
// through a miss.
func TestManager_EvictionWritesBackAndPersists_S5(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8) // exactly 2 slots for class 0

	write := func(marker byte) buffer.PageID {
		ptr, err := mgr.Allocate(100, 8)
		require.NoError(t, err)
		data, err := mgr.GetPage(ptr.PageID)
		require.NoError(t, err)
		data[0] = marker
		require.NoError(t, mgr.Unpin(ptr.PageID, true)) // drop GetPage's pin
		require.NoError(t, mgr.Unpin(ptr.PageID, false)) // drop Allocate's pin; now evictable
		return ptr.PageID
	}

	coldID := write(0xAA)
	_ = write(0xBB)

	// A third allocation has no free slot left and must evict coldID (the
	// oldest entry in the FIFO eviction queue).
	hotPtr, err := mgr.Allocate(100, 8)
	require.NoError(t, err)
	require.NoError(t, mgr.Unpin(hotPtr.PageID, false))

	// Re-fetching coldID must miss the page table and read its dirty bytes
	// back from the SSD region, proving the write-back actually happened.
	data, err := mgr.GetPage(coldID)
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), data[0])
	require.NoError(t, mgr.Unpin(coldID, false))
}

func TestManager_GetPage_InvalidPageIDFails(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8)
	_, err := mgr.GetPage(buffer.InvalidPageID)
	require.Error(t, err)
}

func TestManager_Unpin_UnknownPageFails(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8)
	err := mgr.Unpin(buffer.NewPageID(0, 999), false)
	require.Error(t, err)
}

func TestManager_Deallocate_FreesSlotForReuse(t *testing.T) {
	mgr := newTestManager(t, 8*1024*1*8) // 1 slot per class

	ptr, err := mgr.Allocate(100, 8)
	require.NoError(t, err)
	require.NoError(t, mgr.Deallocate(ptr, 100, 8))

	// With the only slot freed, a second allocation must succeed rather
	// than fail with ErrOutOfMemory.
	ptr2, err := mgr.Allocate(100, 8)
	require.NoError(t, err)
	require.NoError(t, mgr.Unpin(ptr2.PageID, false))
}

func TestManager_Unswizzle_ResolvesLiveAddress(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8)

	ptr, err := mgr.Allocate(100, 8)
	require.NoError(t, err)
	data, err := mgr.GetPage(ptr.PageID)
	require.NoError(t, err)

	id, offset, err := mgr.Unswizzle(data)
	require.NoError(t, err)
	require.Equal(t, ptr.PageID, id)
	require.Equal(t, 0, offset)

	require.NoError(t, mgr.Unpin(ptr.PageID, false))
	require.NoError(t, mgr.Unpin(ptr.PageID, false))
}

// TestManager_Unswizzle_ResolvesInteriorAddress exercises an address that
// does not point at a frame's first byte, e.g. what Deref hands back for a
// BufferManagedPtr with a non-zero ByteOffset -- Unswizzle must still
// resolve it to the owning page and the correct non-zero offset, not just
// the identity-equal first-byte case.
func TestManager_Unswizzle_ResolvesInteriorAddress(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8)

	ptr, err := mgr.Allocate(100, 8)
	require.NoError(t, err)
	data, err := mgr.GetPage(ptr.PageID)
	require.NoError(t, err)

	const want = 50
	id, offset, err := mgr.Unswizzle(data[want:])
	require.NoError(t, err)
	require.Equal(t, ptr.PageID, id)
	require.Equal(t, want, offset)

	require.NoError(t, mgr.Unpin(ptr.PageID, false))
	require.NoError(t, mgr.Unpin(ptr.PageID, false))
}

func TestManager_Unswizzle_UnknownAddressFails(t *testing.T) {
	mgr := newTestManager(t, 8*1024*2*8)
	_, _, err := mgr.Unswizzle(make([]byte, 8))
	require.ErrorIs(t, err, buffer.ErrPageNotFound)
}
