package gps

import (
	"context"
	"sync"
	"time"

	"github.com/stratoberry/go-gpsd"

	"gps-locker/internal/geo"
	"gps-locker/internal/logger"
)

const (
	gpsdMinBackoff = 250 * time.Millisecond
	gpsdMaxBackoff = 10 * time.Second
)

type gpsdSession interface {
	AddFilter(class string, f gpsd.Filter)
	Watch() chan bool
}

var dialGPSDFn = func(addr string) (gpsdSession, error) {
	s, err := gpsd.Dial(addr)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// gpsdReceiver follows TPV and SKY reports from a gpsd daemon. The
// connection is re-established with exponential backoff.
type gpsdReceiver struct {
	addr   string
	log    *logger.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	fix     Fix
	updated bool
	stats   Stats
}

func newGPSDReceiver(ctx context.Context, addr string, log *logger.Logger) *gpsdReceiver {
	ctx, cancel := context.WithCancel(ctx)
	r := &gpsdReceiver{addr: addr, log: log, cancel: cancel}
	r.wg.Add(1)
	go r.run(ctx)
	return r
}

func (r *gpsdReceiver) run(ctx context.Context) {
	defer r.wg.Done()
	backoff := gpsdMinBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		session, err := dialGPSDFn(r.addr)
		if err != nil {
			r.setError("gpsd dial failed addr=" + r.addr + ": " + err.Error())
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < gpsdMaxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = gpsdMinBackoff
		r.log.Info("gpsd connected", "addr", r.addr)

		session.AddFilter("TPV", r.onTPV)
		session.AddFilter("SKY", r.onSKY)
		done := session.Watch()

		select {
		case <-ctx.Done():
			// go-gpsd has no Close; the socket dies with the process.
			return
		case <-done:
			// The old session is dropped without Close (go-gpsd has none);
			// its socket is released when the GC finalizes the conn.
			r.setError("gpsd watch ended addr=" + r.addr)
		}
		if !sleepCtx(ctx, backoff) {
			return
		}
	}
}

func (r *gpsdReceiver) onTPV(v interface{}) {
	tpv, ok := v.(*gpsd.TPVReport)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.PassedChecksum++
	if tpv.Mode < gpsd.Mode2D {
		r.fix.Valid = false
		r.stats.FixQuality = 0
		return
	}
	r.fix = Fix{Coordinate: geo.Coordinate{Lat: tpv.Lat, Lng: tpv.Lon}, Valid: true, At: time.Now().UTC()}
	r.updated = true
	r.stats.FixQuality = int(tpv.Mode)
	r.stats.SentencesWithFix++
}

func (r *gpsdReceiver) onSKY(v interface{}) {
	sky, ok := v.(*gpsd.SKYReport)
	if !ok {
		return
	}
	used := 0
	for _, s := range sky.Satellites {
		if s.Used {
			used++
		}
	}
	r.mu.Lock()
	r.stats.PassedChecksum++
	r.stats.Satellites = used
	r.stats.SatellitesValid = true
	r.mu.Unlock()
}

func (r *gpsdReceiver) setError(msg string) {
	r.mu.Lock()
	r.stats.LastError = msg
	r.mu.Unlock()
}

func (r *gpsdReceiver) Poll() (Fix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.updated || !r.fix.Valid {
		return Fix{}, false
	}
	r.updated = false
	return r.fix, true
}

func (r *gpsdReceiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *gpsdReceiver) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
