//go:build !linux

package actuator

import "fmt"

func openSysfsServo(cfg Config) (Positioner, error) {
	return nil, fmt.Errorf("actuator: sysfs pwm unsupported on this platform")
}
