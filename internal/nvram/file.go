package nvram

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File is a Region persisted to a regular file. Commit replaces the file
// atomically (temp file, fsync, rename), so a power cut leaves either the
// previous image or the new one.
type File struct {
	image
	path string
}

// OpenFile loads the region image from path. A missing file yields an erased
// region; a short file is padded with erased bytes and a long one truncated.
func OpenFile(path string, size int) (*File, error) {
	if size <= 0 {
		size = DefaultSize
	}
	f := &File{path: path}
	f.init(size)

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("nvram: read %s: %w", path, err)
	}
	copy(f.buf, b)
	return f, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("nvram: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("nvram: create temp: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(f.buf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("nvram: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("nvram: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("nvram: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("nvram: rename: %w", err)
	}
	ok = true
	f.dirty = false
	return nil
}
