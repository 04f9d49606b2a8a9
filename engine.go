// Package novasql is the top-level facade wiring the buffer manager and
// the task scheduler together -- the two subsystems this repository
// implements (SPEC_FULL.md 1, 6). Everything above this layer (SQL
// front-end, optimizer, physical operators, catalog, wire protocol) is an
// external collaborator this package does not attempt to provide.
package novasql

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/novadb/novasql/internal/buffer"
	"github.com/novadb/novasql/internal/config"
	"github.com/novadb/novasql/internal/scheduler"
)

// ErrEngineClosed is returned by any Engine method called after Close.
var ErrEngineClosed = errors.New("novasql: engine is closed")

// Engine wires one buffer.Manager and one scheduler.Scheduler to a single
// data directory, following the teacher's Database (a thin struct wiring a
// StorageManager) but generalized to the two subsystems this repository
// actually implements.
type Engine struct {
	mu     sync.RWMutex
	closed bool

	Buffer    *buffer.Manager
	Scheduler scheduler.Scheduler
}

// NewEngine constructs and starts an Engine: a buffer manager rooted at
// dataDir/pages, and a running NodeQueueScheduler sized from
// cfg.Scheduler.
func NewEngine(cfg *config.Config, dataDir string) (*Engine, error) {
	bm, err := buffer.NewManager(&cfg.Buffer, filepath.Join(dataDir, "pages"))
	if err != nil {
		return nil, err
	}

	topo := scheduler.Topology{
		NumNodes:       cfg.Scheduler.NumNodes,
		WorkersPerNode: cfg.Scheduler.WorkersPerNode,
	}
	sched := scheduler.NewNodeQueueScheduler(topo)
	if err := sched.Begin(); err != nil {
		_ = bm.Close()
		return nil, err
	}

	return &Engine{Buffer: bm, Scheduler: sched}, nil
}

// Close stops the scheduler's worker fleet and closes the buffer
// manager's SSD region. It is idempotent-safe to call once; a second call
// returns ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.closed = true

	if err := e.Scheduler.Finish(); err != nil {
		return err
	}
	return e.Buffer.Close()
}
