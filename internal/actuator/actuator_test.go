package actuator

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
)

type fakePositioner struct {
	positions []float64
	closed    bool
}

func (f *fakePositioner) SetPosition(deg float64) error {
	f.positions = append(f.positions, deg)
	return nil
}

func (f *fakePositioner) Close() error {
	f.closed = true
	return nil
}

func TestPulseWidth(t *testing.T) {
	min, max := 500*time.Microsecond, 2500*time.Microsecond
	cases := []struct {
		deg  float64
		want time.Duration
	}{
		{0, 500 * time.Microsecond},
		{90, 1500 * time.Microsecond},
		{180, 2500 * time.Microsecond},
		{-10, 500 * time.Microsecond},
		{270, 2500 * time.Microsecond},
	}
	for _, tc := range cases {
		if got := pulseWidth(tc.deg, min, max); got != tc.want {
			t.Fatalf("pulseWidth(%v)=%v want %v", tc.deg, got, tc.want)
		}
	}
}

func TestServoDuty(t *testing.T) {
	// 1.5 ms of a 20 ms frame is 7.5%.
	got := servoDuty(1500 * time.Microsecond)
	frac := 0.075
	want := gpio.Duty(float64(gpio.DutyMax) * frac)
	if diff := got - want; diff > 1 || diff < -1 {
		t.Fatalf("duty=%v want %v", got, want)
	}
}

func TestOpen_DefaultsToLog(t *testing.T) {
	p, err := Open(Config{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l, ok := p.(*Log)
	if !ok {
		t.Fatalf("backend=%T want *Log", p)
	}
	if err := l.SetPosition(90); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	deg, moves := l.Last()
	if deg != 90 || moves != 1 {
		t.Fatalf("last=(%v,%d) want (90,1)", deg, moves)
	}
}

func TestOpen_DispatchesBackends(t *testing.T) {
	fake := &fakePositioner{}
	var gotCfg Config
	stub := func(cfg Config) (Positioner, error) {
		gotCfg = cfg
		return fake, nil
	}
	oldPWM, oldPeriph, oldGPIO := openSysfsServoFn, openPeriphServoFn, openGPIOLatchFn
	t.Cleanup(func() {
		openSysfsServoFn, openPeriphServoFn, openGPIOLatchFn = oldPWM, oldPeriph, oldGPIO
	})
	openSysfsServoFn, openPeriphServoFn, openGPIOLatchFn = stub, stub, stub

	for _, backend := range []string{"pwm", "PERIPH", " gpio "} {
		gotCfg = Config{}
		p, err := Open(Config{Backend: backend, PWMPin: 18}, nil)
		if err != nil {
			t.Fatalf("Open(%q): %v", backend, err)
		}
		if p != fake {
			t.Fatalf("Open(%q) returned %T", backend, p)
		}
		if gotCfg.MinPulse != 500*time.Microsecond || gotCfg.MaxPulse != 2500*time.Microsecond {
			t.Fatalf("pulse defaults not applied: %+v", gotCfg)
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"UnknownBackend", Config{Backend: "hydraulic"}},
		{"InvertedPulse", Config{MinPulse: 2 * time.Millisecond, MaxPulse: time.Millisecond}},
		{"PulseLongerThanFrame", Config{MaxPulse: 25 * time.Millisecond}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Open(tc.cfg, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOpen_PropagatesBackendError(t *testing.T) {
	old := openGPIOLatchFn
	t.Cleanup(func() { openGPIOLatchFn = old })
	want := errors.New("busy")
	openGPIOLatchFn = func(Config) (Positioner, error) { return nil, want }

	if _, err := Open(Config{Backend: "gpio"}, nil); !errors.Is(err, want) {
		t.Fatalf("err=%v want %v", err, want)
	}
}
