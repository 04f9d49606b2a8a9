package scheduler

// Topology describes a (real or simulated) NUMA layout: a node count and a
// worker count per node, per spec.md 4.12 and 6. Fake topologies are
// supported for testing -- e.g. two "nodes" on a single-socket host, no
// different from a real multi-socket one as far as this package is
// concerned, since Go's standard library offers no portable NUMA
// detection or CPU-affinity binding without cgo (see DESIGN.md Open
// Question 4): workers are goroutines indexed by node, not OS threads
// pinned via runtime.LockOSThread.
type Topology struct {
	NumNodes       int
	WorkersPerNode int
}

// DefaultTopology returns a single-node, four-worker topology suitable for
// a development machine.
func DefaultTopology() Topology {
	return Topology{NumNodes: 1, WorkersPerNode: 4}
}

// TotalWorkers returns NumNodes * WorkersPerNode.
func (t Topology) TotalWorkers() int { return t.NumNodes * t.WorkersPerNode }
