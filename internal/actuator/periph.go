package actuator

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// periphServo drives a servo through periph.io's PWM capable pins. On a
// Raspberry Pi this uses the SoC PWM/DMA engine without needing the sysfs
// overlay.
type periphServo struct {
	mu       sync.Mutex
	pin      gpio.PinIO
	min, max time.Duration
}

var hostInit = host.Init

func openPeriphServo(cfg Config) (Positioner, error) {
	if cfg.PWMPin <= 0 {
		return nil, fmt.Errorf("actuator: invalid pwm pin %d", cfg.PWMPin)
	}
	if _, err := hostInit(); err != nil {
		return nil, fmt.Errorf("actuator: periph host init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", cfg.PWMPin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("actuator: pin %s not found", name)
	}
	return &periphServo{pin: p, min: cfg.MinPulse, max: cfg.MaxPulse}, nil
}

// servoDuty converts a pulse width into a periph duty cycle for a 50 Hz frame.
func servoDuty(pulse time.Duration) gpio.Duty {
	return gpio.Duty(float64(gpio.DutyMax) * float64(pulse) / float64(servoPeriod))
}

func (s *periphServo) SetPosition(deg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	duty := servoDuty(pulseWidth(deg, s.min, s.max))
	if err := s.pin.PWM(duty, 50*physic.Hertz); err != nil {
		return fmt.Errorf("actuator: periph pwm: %w", err)
	}
	return nil
}

func (s *periphServo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pin.Halt()
}
