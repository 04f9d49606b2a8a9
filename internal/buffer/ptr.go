package buffer

import (
	"fmt"
	"unsafe"
)

// BufferManagedPtr is a relocatable, swizzleable reference: a value
// {PageID, ByteOffset}. Arithmetic operates on ByteOffset alone; only
// Deref consults the manager (spec.md 4.8). It is a plain value type with
// no branchless/observer variants -- SPEC_FULL.md 9.2 fixes the semantic
// contract only, leaving micro-optimization out of scope.
type BufferManagedPtr[T any] struct {
	PageID     PageID
	ByteOffset int
}

// Null returns the null pointer; IsNull reports whether ptr is it.
func Null[T any]() BufferManagedPtr[T] { return BufferManagedPtr[T]{PageID: InvalidPageID} }

func (p BufferManagedPtr[T]) IsNull() bool { return !p.PageID.Valid() }

// Add returns a new pointer offset by n*sizeof(T) bytes, without consulting
// the manager -- pure arithmetic on ByteOffset, per spec.md 4.8.
func (p BufferManagedPtr[T]) Add(n int) BufferManagedPtr[T] {
	var zero T
	return BufferManagedPtr[T]{PageID: p.PageID, ByteOffset: p.ByteOffset + n*int(unsafe.Sizeof(zero))}
}

// Deref pins p's page (if not INVALID) and returns a pointer to the T
// value at ByteOffset within it. The caller must Unpin(p.PageID, ...) when
// done; Null pointers deref to (nil, nil).
func Deref[T any](m Allocator, p BufferManagedPtr[T]) (*T, error) {
	if p.IsNull() {
		return nil, nil
	}
	data, err := m.GetPage(p.PageID)
	if err != nil {
		return nil, err
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if p.ByteOffset < 0 || p.ByteOffset+size > len(data) {
		return nil, fmt.Errorf("buffer: Deref offset %d out of page bounds (size %d, page %d bytes)", p.ByteOffset, size, len(data))
	}
	return (*T)(unsafe.Pointer(&data[p.ByteOffset])), nil
}

// Index treats p as the base of an array of T and returns the pointer to
// element i, approximating array-indexing ergonomics Go's lack of operator
// overloading doesn't otherwise offer (spec.md 4.8).
func (p BufferManagedPtr[T]) Index(i int) BufferManagedPtr[T] { return p.Add(i) }

// Equal compares two pointers by their resolved address at this moment
// (spec.md 4.8), not by struct equality of {PageID, ByteOffset}. Two null
// pointers are equal, and a null pointer never equals a non-null one; both
// cases are decided without a manager call. Otherwise both pointers are
// dereferenced through m (pinning their pages, then unpinning them) and
// the resulting addresses are compared.
func (p BufferManagedPtr[T]) Equal(other BufferManagedPtr[T], m Allocator) (bool, error) {
	if p.IsNull() && other.IsNull() {
		return true, nil
	}
	if p.IsNull() != other.IsNull() {
		return false, nil
	}
	a, err := Deref(m, p)
	if err != nil {
		return false, err
	}
	b, err := Deref(m, other)
	if err != nil {
		return false, err
	}
	defer m.Unpin(p.PageID, false)
	defer m.Unpin(other.PageID, false)
	return a == b, nil
}
