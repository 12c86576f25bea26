// Package actuator drives the physical lock.
//
// Every backend exposes the same positioning capability: SetPosition takes a
// servo angle in degrees (0..180). Backends without proportional control map
// the angle onto what they can do (see gpioLatch).
package actuator

import (
	"fmt"
	"strings"
	"time"

	"gps-locker/internal/logger"
)

// Positioner is the actuator boundary used by the geofence controller.
type Positioner interface {
	SetPosition(deg float64) error
	Close() error
}

const (
	BackendLog    = "log"
	BackendPWM    = "pwm"
	BackendPeriph = "periph"
	BackendGPIO   = "gpio"
)

// servoPeriod is the standard hobby servo frame (50 Hz).
const servoPeriod = 20 * time.Millisecond

type Config struct {
	// Backend is one of log, pwm, periph, gpio.
	Backend string

	// PWMPin is the BCM GPIO number carrying the servo signal (pwm, periph).
	PWMPin int
	// MinPulse and MaxPulse are the pulse widths for 0 and 180 degrees.
	MinPulse time.Duration
	MaxPulse time.Duration

	// GPIOLine is the line name driving a latch (gpio), e.g. "GPIO17".
	GPIOLine string
}

var (
	openSysfsServoFn  = openSysfsServo
	openPeriphServoFn = openPeriphServo
	openGPIOLatchFn   = openGPIOLatch
)

// Open returns the configured backend.
func Open(cfg Config, log *logger.Logger) (Positioner, error) {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.MinPulse <= 0 {
		cfg.MinPulse = 500 * time.Microsecond
	}
	if cfg.MaxPulse <= 0 {
		cfg.MaxPulse = 2500 * time.Microsecond
	}
	if cfg.MaxPulse <= cfg.MinPulse || cfg.MaxPulse > servoPeriod {
		return nil, fmt.Errorf("actuator: invalid pulse range %s..%s", cfg.MinPulse, cfg.MaxPulse)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendLog:
		return NewLog(log), nil
	case BackendPWM:
		return openSysfsServoFn(cfg)
	case BackendPeriph:
		return openPeriphServoFn(cfg)
	case BackendGPIO:
		return openGPIOLatchFn(cfg)
	default:
		return nil, fmt.Errorf("actuator: unknown backend %q", cfg.Backend)
	}
}

// pulseWidth maps an angle onto [min,max], clamping to 0..180 degrees.
func pulseWidth(deg float64, min, max time.Duration) time.Duration {
	if deg < 0 {
		deg = 0
	} else if deg > 180 {
		deg = 180
	}
	return min + time.Duration(float64(max-min)*deg/180.0)
}
