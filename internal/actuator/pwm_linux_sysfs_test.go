//go:build linux

package actuator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fakePWMTree(t *testing.T) (base, pwmPath string) {
	t.Helper()
	dir := t.TempDir()
	base = filepath.Join(dir, "pwm")
	realChip := filepath.Join(dir, "realchip0")
	pwmPath = filepath.Join(realChip, "pwm0")
	if err := os.MkdirAll(pwmPath, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(realChip, "npwm"), []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile npwm: %v", err)
	}
	for _, name := range []string{"period", "duty_cycle", "enable"} {
		if err := os.WriteFile(filepath.Join(pwmPath, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	if err := os.Symlink(realChip, filepath.Join(base, "pwmchip0")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })
	return base, pwmPath
}

func readAttr(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile %s: %v", name, err)
	}
	return strings.TrimSpace(string(b))
}

func TestFindPWMChip_AcceptsSymlinkedPWMChip(t *testing.T) {
	base, _ := fakePWMTree(t)
	chipPath, channel, err := findPWMChip()
	if err != nil {
		t.Fatalf("findPWMChip: %v", err)
	}
	if chipPath != filepath.Join(base, "pwmchip0") {
		t.Fatalf("chipPath=%q", chipPath)
	}
	if channel != 0 {
		t.Fatalf("channel=%d want 0", channel)
	}
}

func TestSysfsServo_WritesServoFrame(t *testing.T) {
	_, pwmPath := fakePWMTree(t)

	p, err := openSysfsServo(Config{PWMPin: 18, MinPulse: 500 * time.Microsecond, MaxPulse: 2500 * time.Microsecond})
	if err != nil {
		t.Fatalf("openSysfsServo: %v", err)
	}
	if got := readAttr(t, pwmPath, "period"); got != "20000000" {
		t.Fatalf("period=%s want 20000000", got)
	}

	if err := p.SetPosition(90); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if got := readAttr(t, pwmPath, "duty_cycle"); got != "1500000" {
		t.Fatalf("duty_cycle=%s want 1500000", got)
	}
	if got := readAttr(t, pwmPath, "enable"); got != "1" {
		t.Fatalf("enable=%s want 1", got)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readAttr(t, pwmPath, "enable"); got != "0" {
		t.Fatalf("enable after close=%s want 0", got)
	}
}

func TestSysfsServo_RejectsOtherPins(t *testing.T) {
	if _, err := openSysfsServo(Config{PWMPin: 12}); err == nil {
		t.Fatalf("expected error")
	}
}
