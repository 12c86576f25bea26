// Package nvram emulates a small EEPROM-style byte region.
//
// Reads and writes go to an in-memory image; nothing reaches the backing
// medium until Commit. A region that was never written reads as erased
// flash (0xFF).
package nvram

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultSize matches the EEPROM size used by the original lock firmware.
const DefaultSize = 64

const erased = 0xFF

var ErrOutOfRange = errors.New("nvram: access out of range")

// Region is a fixed-size byte region with explicit commit.
type Region interface {
	Size() int
	Get(off int, p []byte) error
	Put(off int, p []byte) error
	Commit() error
}

// image is the in-memory copy shared by the region implementations.
type image struct {
	mu    sync.Mutex
	buf   []byte
	dirty bool
}

func (m *image) init(size int) {
	m.buf = make([]byte, size)
	for i := range m.buf {
		m.buf[i] = erased
	}
}

func (m *image) Size() int {
	return len(m.buf)
}

func (m *image) Get(off int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+len(p) > len(m.buf) {
		return fmt.Errorf("%w: get off=%d len=%d size=%d", ErrOutOfRange, off, len(p), len(m.buf))
	}
	copy(p, m.buf[off:off+len(p)])
	return nil
}

func (m *image) Put(off int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+len(p) > len(m.buf) {
		return fmt.Errorf("%w: put off=%d len=%d size=%d", ErrOutOfRange, off, len(p), len(m.buf))
	}
	copy(m.buf[off:], p)
	m.dirty = true
	return nil
}

// Mem is a Region that lives only in memory. Commits are counted so tests can
// observe them.
type Mem struct {
	image
	commits int
}

func NewMem(size int) *Mem {
	if size <= 0 {
		size = DefaultSize
	}
	m := &Mem{}
	m.init(size)
	return m
}

func (m *Mem) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	m.dirty = false
	return nil
}

// Commits returns how many times Commit was called.
func (m *Mem) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
