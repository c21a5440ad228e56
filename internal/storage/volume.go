// Package storage defines the non-volatile file store the provisioner keeps
// its configuration record on, and a host-directory implementation of it.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how a file is opened.
type Mode int

const (
	// ModeRead opens an existing file for reading
	ModeRead Mode = iota
	// ModeWrite creates or truncates a file for writing
	ModeWrite
)

// String returns the fopen-style mode string
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ErrNotMounted is returned by Open when Mount has not succeeded.
var ErrNotMounted = errors.New("volume not mounted")

// Volume is a mountable file store.
type Volume interface {
	// Mount makes the volume available. It is safe to call more than once.
	Mount() error
	// Open opens name (a volume-absolute path such as "/config.json").
	// A missing file opened with ModeRead yields an error matching
	// fs.ErrNotExist.
	Open(name string, mode Mode) (Handle, error)
}

// Handle is an open file on a Volume.
type Handle interface {
	Size() (int64, error)
	ReadAll() ([]byte, error)
	WriteAll(data []byte) error
	Close() error
}

// DirVolume maps a Volume onto a directory of the host filesystem.
type DirVolume struct {
	// Root is the directory backing the volume
	Root string

	mounted bool
}

// NewDirVolume creates a volume rooted at dir
func NewDirVolume(dir string) *DirVolume {
	return &DirVolume{Root: dir}
}

// Mount creates the root directory (user-only permissions) if needed and
// checks that it is a directory.
func (v *DirVolume) Mount() error {
	if v.mounted {
		return nil
	}
	if v.Root == "" {
		return fmt.Errorf("mount: no root directory configured")
	}
	if err := os.MkdirAll(v.Root, 0700); err != nil {
		return fmt.Errorf("mount %s: %w", v.Root, err)
	}
	info, err := os.Stat(v.Root)
	if err != nil {
		return fmt.Errorf("mount %s: %w", v.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount %s: not a directory", v.Root)
	}
	v.mounted = true
	return nil
}

// Open opens a file below Root. Paths may not escape the root.
func (v *DirVolume) Open(name string, mode Mode) (Handle, error) {
	if !v.mounted {
		return nil, ErrNotMounted
	}
	path, err := v.resolve(name)
	if err != nil {
		return nil, err
	}

	var f *os.File
	switch mode {
	case ModeRead:
		f, err = os.Open(path)
	case ModeWrite:
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	default:
		return nil, fmt.Errorf("open %s: unsupported mode %s", name, mode)
	}
	if err != nil {
		return nil, err
	}
	return &fileHandle{f: f}, nil
}

// Remove deletes name from the volume. A missing file is not an error.
func (v *DirVolume) Remove(name string) error {
	if !v.mounted {
		return ErrNotMounted
	}
	path, err := v.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (v *DirVolume) resolve(name string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(name))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(v.Root, clean)
	if !strings.HasPrefix(path, filepath.Clean(v.Root)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return path, nil
}

type fileHandle struct {
	f *os.File
}

func (h *fileHandle) Size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (h *fileHandle) ReadAll() ([]byte, error) {
	return io.ReadAll(h.f)
}

func (h *fileHandle) WriteAll(data []byte) error {
	n, err := h.f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return h.f.Sync()
}

func (h *fileHandle) Close() error {
	return h.f.Close()
}
