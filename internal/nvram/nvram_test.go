package nvram

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMem_ErasedByDefault(t *testing.T) {
	m := NewMem(16)
	got := make([]byte, 16)
	if err := m.Get(0, got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, 16)) {
		t.Fatalf("got %x want all ff", got)
	}
}

func TestMem_OutOfRange(t *testing.T) {
	m := NewMem(8)
	if err := m.Put(4, make([]byte, 8)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Put err=%v want ErrOutOfRange", err)
	}
	if err := m.Get(-1, make([]byte, 1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Get err=%v want ErrOutOfRange", err)
	}
}

func TestFile_MissingFileIsErased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	f, err := OpenFile(path, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f.Size() != DefaultSize {
		t.Fatalf("size=%d want %d", f.Size(), DefaultSize)
	}
	b := make([]byte, 4)
	if err := f.Get(0, b); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(b, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("got %x", b)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file before commit, stat err=%v", err)
	}
}

func TestFile_PutIsInvisibleUntilCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "eeprom.bin")
	f, err := OpenFile(path, 16)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f.Put(2, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := OpenFile(path, 16)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	b := make([]byte, 3)
	_ = reopened.Get(2, b)
	if bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("uncommitted data visible after reopen")
	}

	if err := f.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	reopened, err = OpenFile(path, 16)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	_ = reopened.Get(2, b)
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("got %x after commit", b)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the region file, got %d entries", len(entries))
	}
}

func TestFile_ShortFilePadded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	if err := os.WriteFile(path, []byte{7, 7}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := OpenFile(path, 4)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	b := make([]byte, 4)
	_ = f.Get(0, b)
	if !bytes.Equal(b, []byte{7, 7, 0xFF, 0xFF}) {
		t.Fatalf("got %x", b)
	}
}
