package locker

import (
	"sync"

	"gps-locker/internal/geo"
)

// Mailbox hands a new home from writer goroutines to the loop. Only the
// latest value survives; the loop takes it at the start of an iteration.
type Mailbox struct {
	mu      sync.Mutex
	home    geo.Coordinate
	pending bool
	notify  chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// SetHome replaces any pending home. It never blocks.
func (m *Mailbox) SetHome(c geo.Coordinate) {
	m.mu.Lock()
	m.home = c
	m.pending = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mailbox) take() (geo.Coordinate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return geo.Coordinate{}, false
	}
	m.pending = false
	return m.home, true
}
