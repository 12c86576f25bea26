package gps

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// replayReader yields an NMEA log one line at a time, spaced by a fixed
// interval, optionally rewinding at end of file.
type replayReader struct {
	f     *os.File
	br    *bufio.Reader
	clock clockwork.Clock
	every time.Duration
	loop  bool

	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func openReplay(path string, every time.Duration, loop bool, clock clockwork.Clock) (*replayReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &replayReader{
		f:      f,
		br:     bufio.NewReader(f),
		clock:  clock,
		every:  every,
		loop:   loop,
		closed: make(chan struct{}),
	}, nil
}

func (r *replayReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		line, err := r.nextLine()
		if err != nil {
			return 0, err
		}
		r.pending = line
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *replayReader) nextLine() ([]byte, error) {
	if r.every > 0 {
		select {
		case <-r.closed:
			return nil, os.ErrClosed
		case <-r.clock.After(r.every):
		}
	}
	for rewound := false; ; {
		line, err := r.br.ReadBytes('\n')
		if len(line) > 0 {
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
		if !r.loop || rewound {
			return nil, io.EOF
		}
		if _, err := r.f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		r.br.Reset(r.f)
		rewound = true
	}
}

func (r *replayReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.closed)
		err = r.f.Close()
	})
	return err
}
