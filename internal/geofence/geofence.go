// Package geofence decides whether the lock should be open from the distance
// between the current fix and the home coordinate.
package geofence

import (
	"fmt"
	"math"
	"sync"

	"gps-locker/internal/geo"
)

// DefaultThresholdM is the unlock radius around home.
const DefaultThresholdM = 100.0

type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Lock is the actuator capability the controller drives. It is only called
// on an actual state change.
type Lock interface {
	Lock() error
	Unlock() error
}

// Transition describes the outcome of one Update.
type Transition struct {
	From, To  State
	DistanceM float64
}

// Changed reports whether the update flipped the state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

type Config struct {
	// ThresholdM is the unlock radius; 0 selects DefaultThresholdM.
	ThresholdM float64
	// HysteresisM widens the radius required to lock again once unlocked.
	// 0 keeps the single-threshold behavior.
	HysteresisM float64
}

// Controller is the lock state machine. It starts Locked.
type Controller struct {
	threshold  float64
	hysteresis float64
	lock       Lock

	mu       sync.Mutex
	state    State
	lastDist float64
	haveDist bool
}

func New(cfg Config, lock Lock) (*Controller, error) {
	if lock == nil {
		return nil, fmt.Errorf("geofence: lock is nil")
	}
	if cfg.ThresholdM == 0 {
		cfg.ThresholdM = DefaultThresholdM
	}
	if cfg.ThresholdM < 0 || math.IsNaN(cfg.ThresholdM) {
		return nil, fmt.Errorf("geofence: threshold must be > 0")
	}
	if cfg.HysteresisM < 0 || math.IsNaN(cfg.HysteresisM) {
		return nil, fmt.Errorf("geofence: hysteresis must be >= 0")
	}
	return &Controller{
		threshold:  cfg.ThresholdM,
		hysteresis: cfg.HysteresisM,
		lock:       lock,
		state:      Locked,
	}, nil
}

// Update evaluates one fresh, valid fix against home.
//
// The state changes even if the actuator call fails; the error is returned
// so the caller can report it.
func (c *Controller) Update(home, fix geo.Coordinate) (Transition, error) {
	d := geo.Distance(fix, home)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDist = d
	c.haveDist = true

	tr := Transition{From: c.state, To: c.state, DistanceM: d}
	switch c.state {
	case Locked:
		if d < c.threshold {
			tr.To = Unlocked
		}
	case Unlocked:
		// Written as !(d < x) so a NaN distance locks.
		if !(d < c.threshold+c.hysteresis) {
			tr.To = Locked
		}
	}
	if !tr.Changed() {
		return tr, nil
	}

	c.state = tr.To
	var err error
	if tr.To == Unlocked {
		err = c.lock.Unlock()
	} else {
		err = c.lock.Lock()
	}
	if err != nil {
		return tr, fmt.Errorf("geofence: actuator %s: %w", tr.To, err)
	}
	return tr, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastDistance returns the distance computed by the latest Update.
func (c *Controller) LastDistance() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDist, c.haveDist
}

func (c *Controller) ThresholdM() float64 {
	return c.threshold
}
