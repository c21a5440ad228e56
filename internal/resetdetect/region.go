package resetdetect

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Region is a small block of memory that survives a warm restart but not a
// power cycle.
type Region interface {
	io.ReaderAt
	io.WriterAt
}

// DefaultRegionPath is the retained-memory file used by the daemon. /run is
// tmpfs on the target, so the flag survives a process restart and is lost
// on power-off.
const DefaultRegionPath = "/run/provisioner/reset.bin"

// MemoryRegion is an in-process Region of fixed size.
type MemoryRegion struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemoryRegion creates a zeroed region of size bytes
func NewMemoryRegion(size int) *MemoryRegion {
	return &MemoryRegion{buf: make([]byte, size)}
}

// ReadAt implements io.ReaderAt
func (m *MemoryRegion) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes past the end of the region fail.
func (m *MemoryRegion) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("write of %d bytes at offset %d exceeds region size %d", len(p), off, len(m.buf))
	}
	return copy(m.buf[off:], p), nil
}

// FileRegion is a Region backed by a small file. A missing or short file
// reads as zeros, the same as retained memory after power-on.
type FileRegion struct {
	Path string
}

// NewFileRegion creates a region stored at path. An empty path selects
// DefaultRegionPath.
func NewFileRegion(path string) *FileRegion {
	if path == "" {
		path = DefaultRegionPath
	}
	return &FileRegion{Path: path}
}

// ReadAt implements io.ReaderAt
func (r *FileRegion) ReadAt(p []byte, off int64) (int, error) {
	clear(p)

	f, err := os.Open(r.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return len(p), nil
		}
		return 0, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.ReadAt(p, off); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt. The parent directory is created on first
// write.
func (r *FileRegion) WriteAt(p []byte, off int64) (int, error) {
	if err := os.MkdirAll(filepath.Dir(r.Path), 0700); err != nil {
		return 0, fmt.Errorf("failed to create region directory: %w", err)
	}

	f, err := os.OpenFile(r.Path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return 0, err
	}

	n, err := f.WriteAt(p, off)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
