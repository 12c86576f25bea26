package gps

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.bug.st/serial"

	"gps-locker/internal/logger"
)

const (
	SourceNMEA = "nmea"
	SourceGPSD = "gpsd"
	SourceFile = "file"

	DefaultBaud     = 9600
	DefaultGPSDAddr = "127.0.0.1:2947"
)

// Config selects and parameterizes the fix source.
//
// Device may be empty to auto-detect a USB receiver.
type Config struct {
	Source   string
	Device   string
	Baud     int
	GPSDAddr string

	// File replays an NMEA log, one line per FileRate.
	File     string
	FileRate time.Duration
	FileLoop bool
}

var (
	openSerialFn = openSerial
	listPortsFn  = serial.GetPortsList
	replayClock  = clockwork.NewRealClock()
	statFn       = os.Stat
)

// Open starts the configured receiver. The gpsd source keeps retrying in
// the background and so never fails here.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Receiver, error) {
	if log == nil {
		log = logger.Discard()
	}
	src := strings.ToLower(strings.TrimSpace(cfg.Source))
	if src == "" {
		src = SourceNMEA
	}
	switch src {
	case SourceNMEA:
		device := strings.TrimSpace(cfg.Device)
		if device == "" {
			device = autoDetectDevice()
			if device == "" {
				return nil, fmt.Errorf("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			}
		}
		baud := cfg.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		f, err := openSerialFn(device, baud)
		if err != nil {
			return nil, fmt.Errorf("gps open failed device=%s baud=%d: %w", device, baud, err)
		}
		log.Info("gps enabled", "source", src, "device", device, "baud", baud)
		return newStreamReceiver(f, log), nil
	case SourceGPSD:
		addr := strings.TrimSpace(cfg.GPSDAddr)
		if addr == "" {
			addr = DefaultGPSDAddr
		}
		log.Info("gps enabled", "source", src, "addr", addr)
		return newGPSDReceiver(ctx, addr, log), nil
	case SourceFile:
		if strings.TrimSpace(cfg.File) == "" {
			return nil, fmt.Errorf("gps.file is required for source=file")
		}
		r, err := openReplay(cfg.File, cfg.FileRate, cfg.FileLoop, replayClock)
		if err != nil {
			return nil, fmt.Errorf("gps replay: %w", err)
		}
		log.Info("gps enabled", "source", src, "file", cfg.File, "rate", cfg.FileRate, "loop", cfg.FileLoop)
		return newStreamReceiver(r, log), nil
	default:
		return nil, fmt.Errorf("unsupported gps source %q", cfg.Source)
	}
}

// autoDetectDevice prefers CDC-ACM receivers over USB-serial bridges.
func autoDetectDevice() string {
	ports, err := listPortsFn()
	if err == nil && len(ports) > 0 {
		sort.Strings(ports)
		for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB"} {
			for _, p := range ports {
				if strings.HasPrefix(p, prefix) {
					return p
				}
			}
		}
	}
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB"} {
		for i := 0; i < 10; i++ {
			p := fmt.Sprintf("%s%d", prefix, i)
			if _, err := statFn(p); err == nil {
				return p
			}
		}
	}
	return ""
}
