// Package locking holds small concurrency primitives shared by the buffer
// pool and the scheduler. Despite the name, most of these are lock-free;
// "locking" here is database terminology (as in page/tuple/table latches),
// not a promise of mutex use.
package locking

import (
	"fmt"

	"go.uber.org/atomic"
)

// RefCount is a non-negative, CAS-backed pin counter. It backs a Frame's
// pin_count: Inc on pin, Dec on unpin, and Dec panics if the count would
// drop below zero (unpinning an unpinned frame is a programming error).
type RefCount struct {
	count atomic.Int32
}

// NewRefCount creates a counter starting at n (0 for an unpinned frame, 1
// for a frame pinned at creation time).
func NewRefCount(n int32) *RefCount {
	r := &RefCount{}
	r.count.Store(n)
	return r
}

// Inc increments the count and returns the new value.
func (r *RefCount) Inc() int32 {
	return r.count.Inc()
}

// Dec decrements the count and reports whether it reached zero. It panics
// if the count would go negative.
func (r *RefCount) Dec() bool {
	newCount := r.count.Dec()
	if newCount < 0 {
		panic("locking: refcount dropped below zero")
	}
	return newCount == 0
}

// Get returns the current count.
func (r *RefCount) Get() int32 {
	return r.count.Load()
}

// Zero reports whether the count is currently zero.
func (r *RefCount) Zero() bool {
	return r.count.Load() == 0
}

func (r *RefCount) String() string {
	return fmt.Sprintf("RefCount: %d", r.Get())
}
