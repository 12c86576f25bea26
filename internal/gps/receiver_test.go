package gps

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"gps-locker/internal/logger"
)

func pollUntil(t *testing.T, r Receiver, timeout time.Duration) Fix {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fix, ok := r.Poll(); ok {
			return fix
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no fix within %v", timeout)
	return Fix{}
}

func TestStreamReceiver_PollDrainsPipe(t *testing.T) {
	pr, pw := io.Pipe()
	r := newStreamReceiver(pr, logger.Discard())
	defer r.Close()

	if _, ok := r.Poll(); ok {
		t.Fatalf("unexpected fix before any bytes")
	}

	go func() {
		_, _ = pw.Write([]byte(nmeaLine(ggaMunich) + "\r\n"))
		_, _ = pw.Write([]byte(nmeaLine(rmcMunich) + "\r\n"))
	}()
	fix := pollUntil(t, r, 2*time.Second)
	if !fix.Valid {
		t.Fatalf("expected valid fix")
	}
	// Stats reflect bytes drained so far.
	deadline := time.Now().Add(2 * time.Second)
	for r.Stats().PassedChecksum < 2 && time.Now().Before(deadline) {
		r.Poll()
		time.Sleep(2 * time.Millisecond)
	}
	if st := r.Stats(); st.Satellites != 8 || st.PassedChecksum != 2 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestStreamReceiver_EOFReported(t *testing.T) {
	r := newStreamReceiver(io.NopCloser(strings.NewReader(nmeaLine(rmcMunich)+"\n")), logger.Discard())
	defer r.Close()
	pollUntil(t, r, 2*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for r.Stats().LastError == "" && time.Now().Before(deadline) {
		r.Poll()
		time.Sleep(2 * time.Millisecond)
	}
	if got := r.Stats().LastError; got != "gps stream ended" {
		t.Fatalf("last_error=%q", got)
	}
	if _, ok := r.Poll(); ok {
		t.Fatalf("drained receiver must not repeat fixes")
	}
}

func TestStreamReceiver_CloseIdempotent(t *testing.T) {
	pr, _ := io.Pipe()
	r := newStreamReceiver(pr, logger.Discard())
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "track.nmea")
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestReplayReader_LinesThenEOF(t *testing.T) {
	p := writeLog(t, nmeaLine(rmcMunich), nmeaLine(ggaMunich))
	rr, err := openReplay(p, 0, false, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rr.Close()

	all, err := io.ReadAll(rr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := nmeaLine(rmcMunich) + "\r\n" + nmeaLine(ggaMunich) + "\r\n"; string(all) != want {
		t.Fatalf("got %q", all)
	}
}

func TestReplayReader_LoopRewinds(t *testing.T) {
	p := writeLog(t, nmeaLine(rmcMunich))
	rr, err := openReplay(p, 0, true, clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rr.Close()

	buf := make([]byte, 4096)
	want := nmeaLine(rmcMunich) + "\r\n"
	for i := 0; i < 3; i++ {
		n, err := rr.Read(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(buf[:n]) != want {
			t.Fatalf("read %d: %q", i, buf[:n])
		}
	}
}

func TestReplayReader_PacedByClock(t *testing.T) {
	p := writeLog(t, nmeaLine(rmcMunich))
	clock := clockwork.NewFakeClock()
	rr, err := openReplay(p, time.Second, false, clock)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rr.Close()

	got := make(chan int, 1)
	go func() {
		n, _ := rr.Read(make([]byte, 4096))
		got <- n
	}()

	clock.BlockUntil(1)
	select {
	case <-got:
		t.Fatalf("line delivered before interval elapsed")
	default:
	}
	clock.Advance(time.Second)
	select {
	case n := <-got:
		if n == 0 {
			t.Fatalf("expected bytes")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("read did not complete")
	}
}

func TestReplayReader_MissingFile(t *testing.T) {
	if _, err := openReplay(filepath.Join(t.TempDir(), "nope"), 0, false, clockwork.NewRealClock()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUnavailable(t *testing.T) {
	r := Unavailable(os.ErrNotExist)
	if _, ok := r.Poll(); ok {
		t.Fatalf("unexpected fix")
	}
	if r.Stats().LastError != os.ErrNotExist.Error() {
		t.Fatalf("stats=%+v", r.Stats())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
