//go:build linux

package actuator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// gpioLatch drives a solenoid/electric strike through a transistor on one
// GPIO line. Any non-zero angle energizes the line; zero releases it.
type gpioLatch struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func openGPIOLatch(cfg Config) (Positioner, error) {
	lineName := strings.TrimSpace(cfg.GPIOLine)
	if lineName == "" {
		return nil, fmt.Errorf("actuator: gpio line is required")
	}

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("gps-locker"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpioLatch{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("actuator: gpio line %q not found (or busy)", lineName)
}

func (g *gpioLatch) SetPosition(deg float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return fmt.Errorf("actuator: gpio latch closed")
	}
	v := 0
	if deg != 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpioLatch) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
