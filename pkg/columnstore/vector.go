// Package columnstore is a thin demonstration consumer of the buffer
// manager's storage-allocator contract (SPEC_FULL.md 6): a fixed-width
// column vector and a null bitmap, both backed by buffer-managed pages
// instead of a plain Go slice. Everything else a real column store needs
// -- encodings, compression, segment files -- is out of scope; this
// package exists to exercise buffer.Manager.Allocate/Deref/Unpin/
// Deallocate end to end, the way the original engine's heap/record
// packages exercised the teacher's bufferpool.
package columnstore

import (
	"fmt"
	"unsafe"

	"github.com/novadb/novasql/internal/buffer"
)

// FixedWidthVector is a dense array of T stored in a single buffer-managed
// page, pinned for the vector's lifetime. Growth is not supported: Cap is
// fixed at construction, matching a column segment's fixed row count.
type FixedWidthVector[T any] struct {
	mgr      buffer.Allocator
	base     buffer.BufferManagedPtr[T]
	elemSize int
	length   int
	capacity int
}

// NewFixedWidthVector allocates a page sized to hold capacity elements of T
// and pins it for the vector's lifetime.
func NewFixedWidthVector[T any](mgr buffer.Allocator, capacity int) (*FixedWidthVector[T], error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	raw, err := mgr.Allocate(capacity*elemSize, elemSize)
	if err != nil {
		return nil, err
	}
	return &FixedWidthVector[T]{
		mgr:      mgr,
		base:     buffer.BufferManagedPtr[T]{PageID: raw.PageID, ByteOffset: raw.ByteOffset},
		elemSize: elemSize,
		capacity: capacity,
	}, nil
}

// Len returns the number of elements written so far.
func (v *FixedWidthVector[T]) Len() int { return v.length }

// Cap returns the fixed element capacity chosen at construction.
func (v *FixedWidthVector[T]) Cap() int { return v.capacity }

// Get returns a copy of the element at i.
func (v *FixedWidthVector[T]) Get(i int) (T, error) {
	var zero T
	if i < 0 || i >= v.length {
		return zero, fmt.Errorf("columnstore: index %d out of range [0,%d)", i, v.length)
	}
	p := v.base.Index(i)
	ref, err := buffer.Deref(v.mgr, p)
	if err != nil {
		return zero, err
	}
	out := *ref
	_ = v.mgr.Unpin(p.PageID, false)
	return out, nil
}

// Set writes val at index i, extending Len if i is the next unwritten slot.
func (v *FixedWidthVector[T]) Set(i int, val T) error {
	if i < 0 || i >= v.capacity {
		return fmt.Errorf("columnstore: index %d out of range [0,%d)", i, v.capacity)
	}
	p := v.base.Index(i)
	ref, err := buffer.Deref(v.mgr, p)
	if err != nil {
		return err
	}
	*ref = val
	if err := v.mgr.Unpin(p.PageID, true); err != nil {
		return err
	}
	if i >= v.length {
		v.length = i + 1
	}
	return nil
}

// Append writes val at the next unused slot. It fails once Cap is reached.
func (v *FixedWidthVector[T]) Append(val T) error {
	if v.length >= v.capacity {
		return fmt.Errorf("columnstore: vector at capacity %d", v.capacity)
	}
	return v.Set(v.length, val)
}

// Close deallocates the backing page.
func (v *FixedWidthVector[T]) Close() error {
	raw := buffer.BufferManagedPtr[byte]{PageID: v.base.PageID, ByteOffset: v.base.ByteOffset}
	return v.mgr.Deallocate(raw, v.capacity*v.elemSize, v.elemSize)
}
