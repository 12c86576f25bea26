// Package ble advertises the coordinate-write GATT service.
//
// Clients write "<lat>,<lng>" to a single write characteristic. Writes are
// fire-and-forget: the peripheral never answers and never notifies.
package ble

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"gps-locker/internal/logger"
)

// Nordic UART service layout; only the RX characteristic is used.
const (
	ServiceUUID   = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	WriteCharUUID = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"

	DefaultName = "gps-locker"
)

// Handler receives one complete write payload. It runs on the BLE stack's
// goroutine and must not block for long.
type Handler func(payload []byte)

type Config struct {
	Name string
}

// stop tears down advertising.
type stopFunc func() error

var startStackFn = startStack

// Peripheral is a running advertiser.
type Peripheral struct {
	name    string
	log     *logger.Logger
	handler Handler

	writes  atomic.Uint64
	dropped atomic.Uint64

	once sync.Once
	stop stopFunc
}

// Start enables the adapter, registers the service and begins advertising.
func Start(cfg Config, h Handler, log *logger.Logger) (*Peripheral, error) {
	if h == nil {
		return nil, fmt.Errorf("ble: handler is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultName
	}
	p := &Peripheral{name: name, log: log, handler: h}
	stop, err := startStackFn(name, p.onWrite)
	if err != nil {
		return nil, err
	}
	p.stop = stop
	log.Info("ble advertising", "name", name, "service", ServiceUUID)
	return p, nil
}

// onWrite is invoked by the stack for every write request.
func (p *Peripheral) onWrite(offset int, value []byte) {
	if offset != 0 {
		// Long writes are not reassembled; a coordinate pair fits one ATT PDU.
		p.dropped.Add(1)
		p.log.Warn("ble write dropped", "offset", offset, "len", len(value))
		return
	}
	p.writes.Add(1)
	// The stack may reuse value after we return.
	buf := make([]byte, len(value))
	copy(buf, value)
	p.log.Debug("ble write", "len", len(buf))
	p.handler(buf)
}

// Writes reports accepted and dropped write events.
func (p *Peripheral) Writes() (accepted, dropped uint64) {
	return p.writes.Load(), p.dropped.Load()
}

func (p *Peripheral) Name() string { return p.name }

func (p *Peripheral) Close() error {
	if p == nil {
		return nil
	}
	var err error
	p.once.Do(func() {
		if p.stop != nil {
			err = p.stop()
		}
	})
	return err
}
