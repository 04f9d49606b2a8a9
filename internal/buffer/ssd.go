package buffer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/novadb/novasql/internal/alias/util"
)

// IoError wraps a failed read or write to the SSD region. It is fatal to
// the caller per spec: no silent corruption, no retry at this layer.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("buffer: ssd %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// SSDRegion is the durable backing store: one segment file per size class,
// indexed by PageID.Index(). ReadPage/WritePage are blocking and synchronous
// from the caller's view, standing in for direct, aligned I/O -- Go's
// standard library has no portable O_DIRECT primitive, so os.File.ReadAt/
// WriteAt plays that role here (see DESIGN.md).
type SSDRegion struct {
	dir string
	// files[class] is opened lazily and kept open for the region's lifetime.
	files [maxSizeClasses]*os.File
}

// NewSSDRegion opens (creating if necessary) the directory that will hold
// one segment file per size class.
func NewSSDRegion(dir string) (*SSDRegion, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IoError{Op: "mkdir", Err: err}
	}
	return &SSDRegion{dir: dir}, nil
}

func (s *SSDRegion) segmentPath(class int) string {
	return filepath.Join(s.dir, fmt.Sprintf("class-%d.seg", class))
}

func (s *SSDRegion) segment(class int) (*os.File, error) {
	if f := s.files[class]; f != nil {
		return f, nil
	}
	f, err := os.OpenFile(s.segmentPath(class), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &IoError{Op: "open", Err: err}
	}
	s.files[class] = f
	return f, nil
}

// offsetOf computes a page's byte offset within its size class's segment:
// size_class_base + index * size. Each class has its own segment file, so
// size_class_base is implicitly 0 -- the base is the file, not an offset
// within a shared file.
func offsetOf(id PageID) int64 {
	return int64(id.Index()) * int64(SizeOf(id.SizeClass()))
}

// ReadPage copies the on-disk bytes of id into dst, which must be exactly
// SizeOf(id.SizeClass()) bytes. A page never written is all zeros.
func (s *SSDRegion) ReadPage(id PageID, dst []byte) error {
	size := SizeOf(id.SizeClass())
	if len(dst) != size {
		return fmt.Errorf("buffer: ssd read: dst must be %d bytes, got %d", size, len(dst))
	}
	f, err := s.segment(id.SizeClass())
	if err != nil {
		return err
	}
	n, err := f.ReadAt(dst, offsetOf(id))
	if err != nil && err != io.EOF {
		return &IoError{Op: "read", Err: err}
	}
	for i := n; i < size; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage durably writes src to the slot for id. src must be exactly
// SizeOf(id.SizeClass()) bytes.
func (s *SSDRegion) WritePage(id PageID, src []byte) error {
	size := SizeOf(id.SizeClass())
	if len(src) != size {
		return fmt.Errorf("buffer: ssd write: src must be %d bytes, got %d", size, len(src))
	}
	f, err := s.segment(id.SizeClass())
	if err != nil {
		return err
	}
	n, err := f.WriteAt(src, offsetOf(id))
	if err != nil {
		return &IoError{Op: "write", Err: err}
	}
	if n != size {
		return &IoError{Op: "write", Err: io.ErrShortWrite}
	}
	if err := f.Sync(); err != nil {
		return &IoError{Op: "sync", Err: err}
	}
	return nil
}

// Close releases all open segment files.
func (s *SSDRegion) Close() error {
	for _, f := range s.files {
		if f == nil {
			continue
		}
		util.CloseFileFunc(f)
	}
	return nil
}
