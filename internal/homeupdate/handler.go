// Package homeupdate applies home coordinates written by a client (BLE or
// HTTP).
package homeupdate

import (
	"errors"
	"fmt"
	"sync"

	"gps-locker/internal/geo"
	"gps-locker/internal/logger"
)

var (
	// ErrMalformedPayload means no separator was found.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidCoordinate means the payload parsed to an unacceptable value.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Saver persists the accepted home.
type Saver interface {
	Save(geo.Coordinate) error
}

// Sink receives the accepted home for the running controller.
type Sink interface {
	SetHome(geo.Coordinate)
}

type Config struct {
	// StrictParse rejects partial numbers and out-of-range coordinates.
	StrictParse bool
}

type Handler struct {
	// mu orders Save and SetHome together so the persisted home and the
	// published home cannot diverge between concurrent writers.
	mu    sync.Mutex
	cfg   Config
	store Saver
	sink  Sink
	log   *logger.Logger
}

func New(cfg Config, store Saver, sink Sink, log *logger.Logger) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("homeupdate: store is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("homeupdate: sink is nil")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{cfg: cfg, store: store, sink: sink, log: log}, nil
}

// Handle parses payload and, when accepted, persists it and publishes it to
// the sink before returning. Rejected payloads change nothing.
func (h *Handler) Handle(payload []byte) (geo.Coordinate, error) {
	h.log.Debug("home payload received", "payload", string(payload))

	c, err := Parse(payload, h.cfg.StrictParse)
	if err != nil {
		h.log.Warn("home payload rejected", logger.Err(err))
		return geo.Coordinate{}, err
	}
	h.log.Info("home payload parsed", "lat", c.Lat, "lng", c.Lng)

	h.mu.Lock()
	saveErr := h.store.Save(c)
	// Publish even if the commit failed so the running device follows the
	// client; the next boot falls back to whatever the region holds.
	h.sink.SetHome(c)
	h.mu.Unlock()
	if saveErr != nil {
		h.log.Error("home save failed", logger.Err(saveErr))
		return c, fmt.Errorf("homeupdate: save: %w", saveErr)
	}
	return c, nil
}

// HandleWrite is Handle shaped for fire-and-forget transports such as a BLE
// write characteristic, which have no way to report an outcome.
func (h *Handler) HandleWrite(payload []byte) {
	_, _ = h.Handle(payload)
}
