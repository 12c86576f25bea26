// Package locker runs the control loop: it owns the home coordinate, feeds
// fresh fixes to the geofence controller and emits periodic status reports.
package locker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"gps-locker/internal/geo"
	"gps-locker/internal/geofence"
	"gps-locker/internal/gps"
	"gps-locker/internal/logger"
)

const (
	DefaultPollInterval   = 20 * time.Millisecond
	DefaultStatusInterval = 5 * time.Second
)

type Config struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
}

// Report is the periodic status summary.
type Report struct {
	At               time.Time      `json:"at"`
	FixCount         uint64         `json:"fix_count"`
	Satellites       *int           `json:"satellites,omitempty"`
	CharsProcessed   uint64         `json:"chars_processed"`
	SentencesWithFix uint64         `json:"sentences_with_fix"`
	FailedChecksum   uint64         `json:"failed_checksum"`
	State            geofence.State `json:"state"`
	DistanceM        *float64       `json:"distance_m,omitempty"`
}

// Snapshot is what the web layer sees.
type Snapshot struct {
	Home       geo.Coordinate `json:"home"`
	State      geofence.State `json:"state"`
	ThresholdM float64        `json:"threshold_m"`
	DistanceM  *float64       `json:"distance_m,omitempty"`
	LastFix    *gps.Fix       `json:"last_fix,omitempty"`
	FixCount   uint64         `json:"fix_count"`
	GPS        gps.Stats      `json:"gps"`
	LastReport *Report        `json:"last_report,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	UpdatedUTC time.Time      `json:"updated_utc"`
}

type Loop struct {
	cfg   Config
	clock clockwork.Clock
	log   *logger.Logger
	rx    gps.Receiver
	ctrl  *geofence.Controller
	mbox  *Mailbox

	// Owned by the Run goroutine.
	home       geo.Coordinate
	lastFix    *gps.Fix
	fixes      uint64
	lastReport time.Time
	report     *Report
	lastErr    string

	snap atomic.Value // Snapshot
}

// New builds a loop starting from the persisted home.
func New(cfg Config, home geo.Coordinate, rx gps.Receiver, ctrl *geofence.Controller, mbox *Mailbox, clock clockwork.Clock, log *logger.Logger) (*Loop, error) {
	if rx == nil {
		return nil, fmt.Errorf("locker: receiver is nil")
	}
	if ctrl == nil {
		return nil, fmt.Errorf("locker: controller is nil")
	}
	if mbox == nil {
		return nil, fmt.Errorf("locker: mailbox is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	l := &Loop{cfg: cfg, clock: clock, log: log, rx: rx, ctrl: ctrl, mbox: mbox, home: home}
	l.lastReport = clock.Now()
	l.publish()
	return l, nil
}

// Run iterates until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	t := l.clock.NewTicker(l.cfg.PollInterval)
	defer t.Stop()

	l.log.Info("locker running", "home", l.home.String(), "threshold_m", l.ctrl.ThresholdM(), "state", l.ctrl.State())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.mbox.notify:
			if l.applyHome() {
				l.publish()
			}
		case <-t.Chan():
			l.iterate()
		}
	}
}

func (l *Loop) iterate() {
	changed := l.applyHome()

	if fix, ok := l.rx.Poll(); ok {
		l.onFix(fix)
		changed = true
	}

	if l.clock.Since(l.lastReport) > l.cfg.StatusInterval {
		l.emitReport()
		changed = true
	}

	if changed {
		l.publish()
	}
}

func (l *Loop) applyHome() bool {
	c, ok := l.mbox.take()
	if !ok {
		return false
	}
	l.home = c
	l.log.Info("home applied", "home", c.String())
	return true
}

func (l *Loop) onFix(fix gps.Fix) {
	l.fixes++
	f := fix
	l.lastFix = &f
	l.log.Debug("current position", "lat", fmt.Sprintf("%.6f", fix.Lat), "lng", fmt.Sprintf("%.6f", fix.Lng))

	tr, err := l.ctrl.Update(l.home, fix.Coordinate)
	l.log.Debug("distance", "m", fmt.Sprintf("%.2f", tr.DistanceM))
	if tr.DistanceM < l.ctrl.ThresholdM() {
		l.log.Debug("within threshold", "threshold_m", l.ctrl.ThresholdM())
	} else {
		l.log.Debug("outside threshold", "threshold_m", l.ctrl.ThresholdM())
	}
	if tr.Changed() {
		l.log.Info("lock state changed", "from", tr.From, "to", tr.To, "distance_m", fmt.Sprintf("%.2f", tr.DistanceM))
	}
	if err != nil {
		l.lastErr = err.Error()
		l.log.Warn("actuator failed", logger.Err(err))
	}
}

func (l *Loop) emitReport() {
	now := l.clock.Now()
	l.lastReport = now
	st := l.rx.Stats()
	r := &Report{
		At:               now.UTC(),
		FixCount:         l.fixes,
		CharsProcessed:   st.CharsProcessed,
		SentencesWithFix: st.SentencesWithFix,
		FailedChecksum:   st.FailedChecksum,
		State:            l.ctrl.State(),
	}
	sats := "unknown"
	if st.SatellitesValid {
		n := st.Satellites
		r.Satellites = &n
		sats = fmt.Sprint(n)
	}
	dist := "n/a"
	if d, ok := l.ctrl.LastDistance(); ok {
		r.DistanceM = geo.JSONFloat(d)
		dist = fmt.Sprintf("%.2f", d)
	}
	l.report = r
	l.log.Info("status",
		"fix_count", r.FixCount,
		"satellites", sats,
		"chars", r.CharsProcessed,
		"sentences_with_fix", r.SentencesWithFix,
		"failed_checksum", r.FailedChecksum,
		"state", r.State,
		"distance_m", dist,
	)
	if st.LastError != "" {
		l.log.Debug("gps last error", "error", st.LastError)
	}
}

func (l *Loop) publish() {
	s := Snapshot{
		Home:       l.home,
		State:      l.ctrl.State(),
		ThresholdM: l.ctrl.ThresholdM(),
		LastFix:    l.lastFix,
		FixCount:   l.fixes,
		GPS:        l.rx.Stats(),
		LastReport: l.report,
		LastError:  l.lastErr,
		UpdatedUTC: l.clock.Now().UTC(),
	}
	if d, ok := l.ctrl.LastDistance(); ok {
		// Omitted when the home is non-finite.
		s.DistanceM = geo.JSONFloat(d)
	}
	l.snap.Store(s)
}

// Snapshot is safe to call from any goroutine.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	v := l.snap.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}
