package gps

import (
	"errors"
	"io"
	"sync"

	"gps-locker/internal/logger"
)

// Receiver is a source of fixes. Poll and Stats are called from a single
// goroutine; Close may be called from any.
type Receiver interface {
	// Poll decodes whatever bytes arrived since the previous call and
	// returns the newest valid fix among them, if any. It never blocks.
	Poll() (Fix, bool)
	Stats() Stats
	Close() error
}

const readChunk = 256

// streamReceiver buffers an NMEA byte stream on a reader goroutine.
type streamReceiver struct {
	src    io.ReadCloser
	chunks chan []byte
	done   chan struct{}
	once   sync.Once
	dec    *Decoder

	mu      sync.Mutex
	readErr error
}

func newStreamReceiver(src io.ReadCloser, log *logger.Logger) *streamReceiver {
	r := &streamReceiver{
		src:    src,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		dec:    NewDecoder(),
	}
	r.dec.trace = func(t string) { log.Debug("gps sentence", "type", t) }
	go r.readLoop()
	return r
}

func (r *streamReceiver) readLoop() {
	defer close(r.chunks)
	for {
		buf := make([]byte, readChunk)
		n, err := r.src.Read(buf)
		if n > 0 {
			select {
			case r.chunks <- buf[:n]:
			case <-r.done:
				return
			}
		}
		if err != nil {
			select {
			case <-r.done:
				// Closed underneath us.
			default:
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
	}
}

func (r *streamReceiver) Poll() (Fix, bool) {
	for {
		select {
		case b, ok := <-r.chunks:
			if !ok {
				return r.dec.TakeFix()
			}
			_, _ = r.dec.Write(b)
		default:
			return r.dec.TakeFix()
		}
	}
}

func (r *streamReceiver) Stats() Stats {
	st := r.dec.Stats()
	r.mu.Lock()
	err := r.readErr
	r.mu.Unlock()
	if err != nil {
		if errors.Is(err, io.EOF) {
			st.LastError = "gps stream ended"
		} else {
			st.LastError = "gps read stopped: " + err.Error()
		}
	}
	return st
}

func (r *streamReceiver) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.src.Close()
	})
	return err
}

type unavailable struct{ msg string }

// Unavailable is a receiver that never yields a fix. It stands in when the
// configured source could not be opened so the rest of the process keeps
// running.
func Unavailable(err error) Receiver {
	msg := "gps unavailable"
	if err != nil {
		msg = err.Error()
	}
	return unavailable{msg: msg}
}

func (u unavailable) Poll() (Fix, bool) { return Fix{}, false }
func (u unavailable) Stats() Stats      { return Stats{LastError: u.msg} }
func (u unavailable) Close() error      { return nil }
