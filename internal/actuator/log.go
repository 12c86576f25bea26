package actuator

import (
	"sync"

	"gps-locker/internal/logger"
)

// Log is the v1 actuator: it only records and logs the requested position.
type Log struct {
	log *logger.Logger

	mu    sync.Mutex
	last  float64
	moves int
}

func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Discard()
	}
	return &Log{log: log}
}

func (l *Log) SetPosition(deg float64) error {
	l.mu.Lock()
	l.last = deg
	l.moves++
	l.mu.Unlock()
	l.log.Info("actuator position", "deg", deg)
	return nil
}

// Last returns the last requested angle and how many moves were requested.
func (l *Log) Last() (deg float64, moves int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.moves
}

func (l *Log) Close() error { return nil }
