// Package store persists the home coordinate in an nvram region.
//
// Layout: latitude at offset 0, longitude at offset 8, both little-endian
// IEEE-754 float64.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"gps-locker/internal/geo"
	"gps-locker/internal/logger"
	"gps-locker/internal/nvram"
)

const (
	latOffset = 0
	lngOffset = 8
	fieldSize = 8
)

// ErrCorrupt marks a persisted coordinate that failed validation on load.
// Load heals it instead of returning it; it is used to tag the log line.
var ErrCorrupt = errors.New("store: persisted coordinate corrupt")

type Store struct {
	log *logger.Logger

	mu     sync.Mutex
	region nvram.Region
}

func New(region nvram.Region, log *logger.Logger) (*Store, error) {
	if region == nil {
		return nil, fmt.Errorf("store: region is nil")
	}
	if region.Size() < 2*fieldSize {
		return nil, fmt.Errorf("store: region too small (%d bytes, need %d)", region.Size(), 2*fieldSize)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Store{region: region, log: log}, nil
}

// Load returns the persisted home. A NaN or out-of-range value resets both
// fields to (0,0) and persists the reset before returning.
func (s *Store) Load() (geo.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lat, err := s.getFloat(latOffset)
	if err != nil {
		return geo.Coordinate{}, err
	}
	lng, err := s.getFloat(lngOffset)
	if err != nil {
		return geo.Coordinate{}, err
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if c.Valid() {
		return c, nil
	}

	s.log.Warn("resetting persisted home", logger.Err(ErrCorrupt),
		"lat", lat, "lng", lng)
	c = geo.Coordinate{}
	if err := s.saveLocked(c); err != nil {
		return c, err
	}
	return c, nil
}

// Save writes both fields and commits. No range check is applied here; the
// write path decides what it accepts and Load is the bounds guard.
func (s *Store) Save(c geo.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(c); err != nil {
		return err
	}
	s.log.Info("home saved", "lat", c.Lat, "lng", c.Lng)
	return nil
}

func (s *Store) saveLocked(c geo.Coordinate) error {
	if err := s.putFloat(latOffset, c.Lat); err != nil {
		return err
	}
	if err := s.putFloat(lngOffset, c.Lng); err != nil {
		return err
	}
	if err := s.region.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *Store) getFloat(off int) (float64, error) {
	var b [fieldSize]byte
	if err := s.region.Get(off, b[:]); err != nil {
		return 0, fmt.Errorf("store: get offset %d: %w", off, err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}

func (s *Store) putFloat(off int, v float64) error {
	var b [fieldSize]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	if err := s.region.Put(off, b[:]); err != nil {
		return fmt.Errorf("store: put offset %d: %w", off, err)
	}
	return nil
}
