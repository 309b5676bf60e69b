package persist

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File stores the projection as a single binary blob on disk. Writes go
// through a temp file and rename, so readers never observe a torn write.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a Store writing to path. The parent directory must exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Save encodes and atomically replaces the stored blob.
func (f *File) Save(_ context.Context, p Projection) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".projection-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, f.path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

// Load reads and decodes the stored blob. A missing or undecodable file
// degrades to ok=false.
func (f *File) Load(_ context.Context) (Projection, bool, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Projection{}, false, nil
		}
		return Projection{}, false, err
	}

	p, err := Decode(data)
	if err != nil {
		return Projection{}, false, nil
	}
	return p, true, nil
}

// Clear removes the stored blob. Removing a missing file is a no-op.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
