package buffer

import "errors"

var (
	// ErrOutOfMemory is returned to the allocator caller when both DRAM and
	// SSD-backed capacity are exhausted and eviction cannot supply a victim.
	ErrOutOfMemory = errors.New("buffer: out of memory")

	// ErrInvalidUsage wraps programming errors (Unpin of an unpinned or
	// untracked page, GetPage of INVALID, an alignment above the page size,
	// a PageID collision on Allocate) that would panic under a debug config;
	// see Manager.fail.
	ErrInvalidUsage = errors.New("buffer: invalid usage")

	// ErrPageNotFound is returned by Unswizzle when a raw address does not
	// belong to any tracked volatile region.
	ErrPageNotFound = errors.New("buffer: page not found")
)
