//go:build linux

package actuator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// sysfsServo drives a servo from a hardware PWM channel via /sys/class/pwm.
//
// On Raspberry Pi, `dtoverlay=pwm-2chan` exposes GPIO18 as channel 0 of
// pwmchip0. The period is fixed to the 20 ms servo frame at open time; each
// SetPosition only rewrites duty_cycle.
type sysfsServo struct {
	mu       sync.Mutex
	chipPath string
	pwmPath  string
	channel  int
	min, max time.Duration
}

var pwmSysfsBase = "/sys/class/pwm"

func openSysfsServo(cfg Config) (Positioner, error) {
	if cfg.PWMPin != 18 {
		return nil, fmt.Errorf("actuator: sysfs pwm supports only pwm_pin=18 for now")
	}
	chipPath, channel, err := findPWMChip()
	if err != nil {
		return nil, err
	}
	s := &sysfsServo{
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
		min:      cfg.MinPulse,
		max:      cfg.MaxPulse,
	}
	if err := s.ensureExported(); err != nil {
		return nil, err
	}

	// Disable before changing period (common sysfs requirement).
	_ = s.writeBool("enable", false)
	if err := s.writeUint("period", uint64(servoPeriod.Nanoseconds())); err != nil {
		return nil, fmt.Errorf("actuator: set pwm period: %w", err)
	}
	return s, nil
}

func findPWMChip() (chipPath string, channel int, err error) {
	base := pwmSysfsBase
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", 0, fmt.Errorf("actuator: read %s: %w", base, err)
	}

	// pwmchipN entries are commonly symlinks, not directories.
	var candidates []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			candidates = append(candidates, e.Name())
		}
	}
	for _, name := range candidates {
		chip := filepath.Join(base, name)
		n, rerr := readInt(filepath.Join(chip, "npwm"))
		if rerr != nil || n <= 0 {
			continue
		}
		return chip, 0, nil
	}
	return "", 0, fmt.Errorf("actuator: no sysfs pwmchip found (is pwm overlay enabled?)")
}

func (s *sysfsServo) ensureExported() error {
	if _, err := os.Stat(s.pwmPath); err == nil {
		return nil
	}
	exportPath := filepath.Join(s.chipPath, "export")
	if err := writeSysfs(exportPath, strconv.Itoa(s.channel)); err != nil {
		if _, statErr := os.Stat(s.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("actuator: export pwm: %w", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(s.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(s.pwmPath); err != nil {
		return fmt.Errorf("actuator: pwm path not created after export: %w", err)
	}
	return nil
}

func (s *sysfsServo) SetPosition(deg float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pulse := pulseWidth(deg, s.min, s.max)
	if err := s.writeUint("duty_cycle", uint64(pulse.Nanoseconds())); err != nil {
		return err
	}
	return s.writeBool("enable", true)
}

func (s *sysfsServo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Servos hold position mechanically; stop pulsing so it does not buzz.
	return s.writeBool("enable", false)
}

func (s *sysfsServo) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(s.pwmPath, name), strconv.FormatUint(v, 10))
}

func (s *sysfsServo) writeBool(name string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	return writeSysfs(filepath.Join(s.pwmPath, name), val)
}

// writeSysfs opens with O_WRONLY only: some attributes reject O_TRUNC, and
// right after export udev may still be fixing permissions, so EACCES/ENOENT
// are retried for a short while.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
				time.Sleep(25 * time.Millisecond)
				continue
			}
			return err
		}
		_, werr := f.WriteString(value)
		cerr := f.Close()
		if werr == nil && cerr == nil {
			return nil
		}
		lastErr := errors.Join(werr, cerr)
		if time.Now().Before(deadline) && isRetryableSysfsErr(lastErr) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return lastErr
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.Atoi(s)
}
