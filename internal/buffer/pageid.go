// Package buffer implements the page-granular, tiered buffer-pool manager:
// page identity (this file), the SSD and volatile regions, the frame state
// machine, the page table, the eviction queue, and the buffer manager that
// orchestrates all of them.
package buffer

import "github.com/novadb/novasql/internal/alias/bx"

// baseSize is the smallest page size, class 0. Class k has size
// baseSize << k.
const baseSize = 8 * 1024

// maxSizeClasses bounds the geometric progression of page sizes and, with
// indexBits, the number of bits reserved for the per-class page index.
const (
	maxSizeClasses = 8
	sizeClassBits  = 4
	indexBits      = 59
	indexMask      = (uint64(1) << indexBits) - 1
)

// PageID is a packed {valid:1, size_class:4, index:59} identifier. It is
// globally unique across the process lifetime; equality and ordering are
// total and purely syntactic (plain uint64 comparison).
type PageID uint64

// InvalidPageID is the all-sentinel value with valid=0.
const InvalidPageID PageID = 0

// NewPageID packs a size class and index into a PageID with the valid bit
// set. It panics if class or index do not fit the reserved bit widths --
// this is a programming error (construction from an out-of-range index),
// not a runtime condition a caller recovers from.
func NewPageID(class int, index uint64) PageID {
	if class < 0 || class >= maxSizeClasses {
		panic("buffer: size class out of range")
	}
	if index > indexMask {
		panic("buffer: page index exceeds reserved bits")
	}
	packed := uint64(1)<<63 | uint64(class)<<indexBits | index
	return PageID(packed)
}

// Valid reports whether the id is anything but InvalidPageID.
func (p PageID) Valid() bool {
	return p>>63 == 1
}

// SizeClass returns the geometric size-class index this id belongs to.
func (p PageID) SizeClass() int {
	return int((uint64(p) >> indexBits) & (1<<sizeClassBits - 1))
}

// Index returns the per-class slot index packed into the id.
func (p PageID) Index() uint64 {
	return uint64(p) & indexMask
}

// SizeOf returns the byte size of the page size class k.
func SizeOf(class int) int {
	return baseSize << uint(class)
}

// FindFittingPageSizeType returns the smallest size class whose size is >=
// n. ok is false if n exceeds the largest available class.
func FindFittingPageSizeType(n int) (class int, ok bool) {
	for k := 0; k < maxSizeClasses; k++ {
		if SizeOf(k) >= n {
			return k, true
		}
	}
	return 0, false
}

// Bytes packs the id into an 8-byte little-endian slice, using the
// teacher's binary.LittleEndian-backed bx helpers rather than hand-rolled
// shifts, matching the rest of this package's byte-level packing.
func (p PageID) Bytes() []byte {
	b := make([]byte, 8)
	bx.PutU64(b, uint64(p))
	return b
}

// PageIDFromBytes is the inverse of Bytes.
func PageIDFromBytes(b []byte) PageID {
	return PageID(bx.U64(b))
}
