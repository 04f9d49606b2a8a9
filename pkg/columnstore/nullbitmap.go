package columnstore

import (
	"fmt"

	"github.com/novadb/novasql/internal/buffer"
)

// NullBitmap is a bit-packed null-tracking vector over n logical slots,
// backed by one buffer-managed page. One byte holds 8 slots.
type NullBitmap struct {
	mgr buffer.Allocator
	ptr buffer.BufferManagedPtr[byte]
	n   int
}

// NewNullBitmap allocates a page of ceil(n/8) bytes, all initially clear
// (not null).
func NewNullBitmap(mgr buffer.Allocator, n int) (*NullBitmap, error) {
	if n <= 0 {
		return nil, fmt.Errorf("columnstore: NewNullBitmap requires n > 0, got %d", n)
	}
	bytesNeeded := (n + 7) / 8
	ptr, err := mgr.Allocate(bytesNeeded, 1)
	if err != nil {
		return nil, err
	}
	return &NullBitmap{mgr: mgr, ptr: ptr, n: n}, nil
}

func (b *NullBitmap) checkRange(i int) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("columnstore: bit index %d out of range [0,%d)", i, b.n)
	}
	return nil
}

// IsNull reports whether slot i is flagged null.
func (b *NullBitmap) IsNull(i int) (bool, error) {
	if err := b.checkRange(i); err != nil {
		return false, err
	}
	data, err := b.mgr.GetPage(b.ptr.PageID)
	if err != nil {
		return false, err
	}
	defer b.mgr.Unpin(b.ptr.PageID, false)
	byteIdx, bit := i/8, uint(i%8)
	return data[byteIdx]&(1<<bit) != 0, nil
}

// SetNull flags (or clears) slot i.
func (b *NullBitmap) SetNull(i int, isNull bool) error {
	if err := b.checkRange(i); err != nil {
		return err
	}
	data, err := b.mgr.GetPage(b.ptr.PageID)
	if err != nil {
		return err
	}
	byteIdx, bit := i/8, uint(i%8)
	if isNull {
		data[byteIdx] |= 1 << bit
	} else {
		data[byteIdx] &^= 1 << bit
	}
	return b.mgr.Unpin(b.ptr.PageID, true)
}

// Close deallocates the backing page.
func (b *NullBitmap) Close() error {
	bytesNeeded := (b.n + 7) / 8
	return b.mgr.Deallocate(b.ptr, bytesNeeded, 1)
}
