package web

import (
	"sync/atomic"
	"time"

	"gps-locker/internal/locker"
)

// LockerSource is the loop's published view.
type LockerSource interface {
	Snapshot() locker.Snapshot
}

// BLESource reports write counters of the BLE peripheral.
type BLESource interface {
	Name() string
	Writes() (accepted, dropped uint64)
}

// bleHolder keeps atomic.Value's stored type fixed across implementations.
type bleHolder struct{ src BLESource }

type Status struct {
	startUnixNano int64
	locker        LockerSource
	ble           atomic.Value // bleHolder
	bleError      atomic.Value // string
}

func NewStatus(src LockerSource) *Status {
	s := &Status{locker: src}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.bleError.Store("")
	return s
}

// SetBLE attaches the running peripheral, or records why there is none.
func (s *Status) SetBLE(src BLESource, startErr error) {
	if src != nil {
		s.ble.Store(bleHolder{src: src})
	}
	if startErr != nil {
		s.bleError.Store(startErr.Error())
	}
}

type BLESnapshot struct {
	Enabled   bool   `json:"enabled"`
	Name      string `json:"name,omitempty"`
	Writes    uint64 `json:"writes"`
	Dropped   uint64 `json:"dropped"`
	LastError string `json:"last_error,omitempty"`
}

type StatusSnapshot struct {
	Service   string          `json:"service"`
	NowUTC    string          `json:"now_utc"`
	UptimeSec int64           `json:"uptime_sec"`
	Locker    locker.Snapshot `json:"locker"`
	BLE       BLESnapshot     `json:"ble"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   serviceName,
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
	}
	if s.locker != nil {
		snap.Locker = s.locker.Snapshot()
	}
	if h, ok := s.ble.Load().(bleHolder); ok && h.src != nil {
		v := h.src
		snap.BLE.Enabled = true
		snap.BLE.Name = v.Name()
		snap.BLE.Writes, snap.BLE.Dropped = v.Writes()
	}
	snap.BLE.LastError = s.bleError.Load().(string)
	return snap
}
