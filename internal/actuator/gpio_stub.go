//go:build !linux

package actuator

import "fmt"

func openGPIOLatch(cfg Config) (Positioner, error) {
	return nil, fmt.Errorf("actuator: gpio unsupported on this platform")
}
