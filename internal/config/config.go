package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Home     HomeConfig     `yaml:"home"`
	Geofence GeofenceConfig `yaml:"geofence"`
	GPS      GPSConfig      `yaml:"gps"`
	BLE      BLEConfig      `yaml:"ble"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Web      WebConfig      `yaml:"web"`
	Loop     LoopConfig     `yaml:"loop"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// BufferLines sizes the in-memory tail served by /api/logs.
	BufferLines int `yaml:"buffer_lines"`
}

// StorageConfig locates the file standing in for the EEPROM region.
type StorageConfig struct {
	Path string `yaml:"path"`
	Size int    `yaml:"size"`
}

type HomeConfig struct {
	StrictParse bool `yaml:"strict_parse"`
}

type GeofenceConfig struct {
	ThresholdM  float64 `yaml:"threshold_m"`
	HysteresisM float64 `yaml:"hysteresis_m"`
}

type GPSConfig struct {
	// Source is "nmea" (serial), "gpsd" or "file" (NMEA log replay).
	Source   string        `yaml:"source"`
	Device   string        `yaml:"device"`
	Baud     int           `yaml:"baud"`
	GPSDAddr string        `yaml:"gpsd_addr"`
	File     string        `yaml:"file"`
	FileRate time.Duration `yaml:"file_rate"`
	FileLoop bool          `yaml:"file_loop"`
}

type BLEConfig struct {
	Enable bool   `yaml:"enable"`
	Name   string `yaml:"name"`
}

type ActuatorConfig struct {
	// Backend is one of log, pwm, periph, gpio.
	Backend     string        `yaml:"backend"`
	PWMPin      int           `yaml:"pwm_pin"`
	MinPulse    time.Duration `yaml:"min_pulse"`
	MaxPulse    time.Duration `yaml:"max_pulse"`
	GPIOLine    string        `yaml:"gpio_line"`
	LockedDeg   *float64      `yaml:"locked_deg"`
	UnlockedDeg *float64      `yaml:"unlocked_deg"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LoopConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

const (
	DefaultStoragePath = "/var/lib/gps-locker/home.bin"
	DefaultStorageSize = 64
	minStorageSize     = 16

	DefaultLockedDeg   = 0.0
	DefaultUnlockedDeg = 90.0
)

var supportedBauds = map[int]bool{4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values and rejects inconsistent settings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.BufferLines == 0 {
		cfg.Log.BufferLines = 2000
	}
	if cfg.Log.BufferLines < 0 {
		return fmt.Errorf("log.buffer_lines must be > 0")
	}

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.Size == 0 {
		cfg.Storage.Size = DefaultStorageSize
	}
	if cfg.Storage.Size < minStorageSize {
		return fmt.Errorf("storage.size must be >= %d", minStorageSize)
	}

	if cfg.Geofence.ThresholdM == 0 {
		cfg.Geofence.ThresholdM = 100
	}
	if cfg.Geofence.ThresholdM < 0 || math.IsNaN(cfg.Geofence.ThresholdM) {
		return fmt.Errorf("geofence.threshold_m must be > 0")
	}
	if cfg.Geofence.HysteresisM < 0 || math.IsNaN(cfg.Geofence.HysteresisM) {
		return fmt.Errorf("geofence.hysteresis_m must be >= 0")
	}

	if err := defaultGPS(&cfg.GPS); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.BLE.Name) == "" {
		cfg.BLE.Name = "gps-locker"
	}

	if err := defaultActuator(&cfg.Actuator); err != nil {
		return err
	}

	if cfg.Web.Enable && strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Loop.PollInterval == 0 {
		cfg.Loop.PollInterval = 20 * time.Millisecond
	}
	if cfg.Loop.PollInterval < 0 {
		return fmt.Errorf("loop.poll_interval must be > 0")
	}
	if cfg.Loop.StatusInterval == 0 {
		cfg.Loop.StatusInterval = 5 * time.Second
	}
	if cfg.Loop.StatusInterval < cfg.Loop.PollInterval {
		return fmt.Errorf("loop.status_interval must be >= loop.poll_interval")
	}
	return nil
}

func defaultGPS(g *GPSConfig) error {
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	if g.Source == "" {
		g.Source = "nmea"
	}
	switch g.Source {
	case "nmea":
		if g.Baud == 0 {
			g.Baud = 9600
		}
		if !supportedBauds[g.Baud] {
			return fmt.Errorf("gps.baud %d is not supported", g.Baud)
		}
	case "gpsd":
		if strings.TrimSpace(g.GPSDAddr) == "" {
			g.GPSDAddr = "127.0.0.1:2947"
		}
	case "file":
		if strings.TrimSpace(g.File) == "" {
			return fmt.Errorf("gps.file is required when gps.source is 'file'")
		}
		if g.FileRate == 0 {
			g.FileRate = time.Second
		}
		if g.FileRate < 0 {
			return fmt.Errorf("gps.file_rate must be >= 0")
		}
	default:
		return fmt.Errorf("gps.source must be one of nmea, gpsd, file")
	}
	return nil
}

func defaultActuator(a *ActuatorConfig) error {
	a.Backend = strings.ToLower(strings.TrimSpace(a.Backend))
	if a.Backend == "" {
		a.Backend = "log"
	}
	switch a.Backend {
	case "log":
	case "pwm", "periph":
		if a.PWMPin == 0 {
			a.PWMPin = 18
		}
	case "gpio":
		if strings.TrimSpace(a.GPIOLine) == "" {
			return fmt.Errorf("actuator.gpio_line is required when actuator.backend is 'gpio'")
		}
	default:
		return fmt.Errorf("actuator.backend must be one of log, pwm, periph, gpio")
	}
	if a.LockedDeg == nil {
		v := DefaultLockedDeg
		a.LockedDeg = &v
	}
	if a.UnlockedDeg == nil {
		v := DefaultUnlockedDeg
		a.UnlockedDeg = &v
	}
	if !validAngle(*a.LockedDeg) {
		return fmt.Errorf("actuator.locked_deg must be within [0,180]")
	}
	if !validAngle(*a.UnlockedDeg) {
		return fmt.Errorf("actuator.unlocked_deg must be within [0,180]")
	}
	if *a.LockedDeg == *a.UnlockedDeg {
		return fmt.Errorf("actuator.locked_deg and actuator.unlocked_deg must differ")
	}
	return nil
}

func validAngle(v float64) bool {
	return v >= 0 && v <= 180
}
