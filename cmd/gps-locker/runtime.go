package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"gps-locker/internal/actuator"
	"gps-locker/internal/ble"
	"gps-locker/internal/config"
	"gps-locker/internal/geofence"
	"gps-locker/internal/gps"
	"gps-locker/internal/homeupdate"
	"gps-locker/internal/locker"
	"gps-locker/internal/logger"
	"gps-locker/internal/nvram"
	"gps-locker/internal/store"
	"gps-locker/internal/web"
)

// lockerRuntime is everything one process owns.
type lockerRuntime struct {
	cfg  config.Config
	log  *logger.Logger
	logs *web.LogBuffer

	store  *store.Store
	pos    actuator.Positioner
	rx     gps.Receiver
	ctrl   *geofence.Controller
	loop   *locker.Loop
	home   *homeupdate.Handler
	status *web.Status
	ble    *ble.Peripheral
}

var startBLEFn = ble.Start

// newLockerRuntime brings the system up. Storage and controller errors are
// fatal; GPS, actuator and BLE failures are logged and the process keeps
// going with a stand-in.
func newLockerRuntime(ctx context.Context, cfg config.Config, log *logger.Logger, logs *web.LogBuffer, clock clockwork.Clock) (*lockerRuntime, error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	r := &lockerRuntime{cfg: c, log: log, logs: logs}

	region, err := nvram.OpenFile(c.Storage.Path, c.Storage.Size)
	if err != nil {
		return nil, fmt.Errorf("storage open failed: %w", err)
	}
	r.store, err = store.New(region, log.With("component", "store"))
	if err != nil {
		return nil, err
	}
	home, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("home load failed: %w", err)
	}
	log.Info("home loaded", "home", home.String(), "path", region.Path())

	r.pos, err = actuator.Open(actuator.Config{
		Backend:  c.Actuator.Backend,
		PWMPin:   c.Actuator.PWMPin,
		MinPulse: c.Actuator.MinPulse,
		MaxPulse: c.Actuator.MaxPulse,
		GPIOLine: c.Actuator.GPIOLine,
	}, log.With("component", "actuator"))
	if err != nil {
		log.Warn("actuator unavailable, falling back to log backend", "backend", c.Actuator.Backend, logger.Err(err))
		r.pos = actuator.NewLog(log.With("component", "actuator"))
	}
	lock := geofence.ServoLock{
		Actuator:    r.pos,
		LockedDeg:   *c.Actuator.LockedDeg,
		UnlockedDeg: *c.Actuator.UnlockedDeg,
	}
	// Match the controller's initial state.
	if err := lock.Lock(); err != nil {
		log.Warn("initial lock failed", logger.Err(err))
	}

	r.ctrl, err = geofence.New(geofence.Config{
		ThresholdM:  c.Geofence.ThresholdM,
		HysteresisM: c.Geofence.HysteresisM,
	}, lock)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.rx, err = gps.Open(ctx, gps.Config{
		Source:   c.GPS.Source,
		Device:   c.GPS.Device,
		Baud:     c.GPS.Baud,
		GPSDAddr: c.GPS.GPSDAddr,
		File:     c.GPS.File,
		FileRate: c.GPS.FileRate,
		FileLoop: c.GPS.FileLoop,
	}, log.With("component", "gps"))
	if err != nil {
		log.Warn("gps unavailable", logger.Err(err))
		r.rx = gps.Unavailable(err)
	}

	mbox := locker.NewMailbox()
	r.loop, err = locker.New(locker.Config{
		PollInterval:   c.Loop.PollInterval,
		StatusInterval: c.Loop.StatusInterval,
	}, home, r.rx, r.ctrl, mbox, clock, log.With("component", "locker"))
	if err != nil {
		r.Close()
		return nil, err
	}

	r.home, err = homeupdate.New(homeupdate.Config{StrictParse: c.Home.StrictParse}, r.store, mbox, log.With("component", "home"))
	if err != nil {
		r.Close()
		return nil, err
	}

	r.status = web.NewStatus(r.loop)
	if c.BLE.Enable {
		p, err := startBLEFn(ble.Config{Name: c.BLE.Name}, r.home.HandleWrite, log.With("component", "ble"))
		if err != nil {
			log.Warn("ble unavailable", logger.Err(err))
			r.status.SetBLE(nil, err)
		} else {
			r.ble = p
			r.status.SetBLE(p, nil)
		}
	}
	return r, nil
}

// run blocks until ctx is canceled.
func (r *lockerRuntime) run(ctx context.Context) error {
	if r.cfg.Web.Enable {
		go func() {
			r.log.Info("web listening", "addr", r.cfg.Web.Listen)
			err := web.Serve(ctx, r.cfg.Web.Listen, web.Deps{Status: r.status, Logs: r.logs, Home: r.home})
			if err != nil && !errors.Is(err, context.Canceled) {
				r.log.Warn("web server stopped", logger.Err(err))
			}
		}()
	}
	return r.loop.Run(ctx)
}

func (r *lockerRuntime) Close() {
	if r.ble != nil {
		if err := r.ble.Close(); err != nil {
			r.log.Warn("ble close failed", logger.Err(err))
		}
	}
	if r.rx != nil {
		if err := r.rx.Close(); err != nil {
			r.log.Warn("gps close failed", logger.Err(err))
		}
	}
	if r.pos != nil {
		if err := r.pos.Close(); err != nil {
			r.log.Warn("actuator close failed", logger.Err(err))
		}
	}
}
