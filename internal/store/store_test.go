package store

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gps-locker/internal/geo"
	"gps-locker/internal/logger"
	"gps-locker/internal/nvram"
)

func newStore(t *testing.T, region nvram.Region) *Store {
	t.Helper()
	s, err := New(region, logger.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func putRaw(t *testing.T, region nvram.Region, lat, lng float64) {
	t.Helper()
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], math.Float64bits(lat))
	binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(lng))
	if err := region.Put(0, b[:]); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newStore(t, nvram.NewMem(nvram.DefaultSize))
	coords := []geo.Coordinate{
		{Lat: 35.681, Lng: 139.767},
		{Lat: -90, Lng: 180},
		{Lat: 90, Lng: -180},
		{Lat: 0.1, Lng: -0.000001},
		{Lat: 12.3456789012345, Lng: 98.7654321098765},
	}
	for _, c := range coords {
		if err := s.Save(c); err != nil {
			t.Fatalf("Save(%v): %v", c, err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != c {
			t.Fatalf("Load()=%v want %v", got, c)
		}
	}
}

func TestLoad_HealsCorruptRegion(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng float64
	}{
		{"LatNaN", math.NaN(), 10},
		{"LngNaN", 10, math.NaN()},
		{"LatHigh", 90.5, 10},
		{"LatLow", -91, 10},
		{"LngHigh", 10, 181},
		{"LngLow", 10, -180.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			region := nvram.NewMem(nvram.DefaultSize)
			putRaw(t, region, tc.lat, tc.lng)
			s := newStore(t, region)

			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != (geo.Coordinate{}) {
				t.Fatalf("Load()=%v want (0,0)", got)
			}
			if region.Commits() != 1 {
				t.Fatalf("commits=%d want 1", region.Commits())
			}

			again, err := s.Load()
			if err != nil {
				t.Fatalf("second Load: %v", err)
			}
			if again != (geo.Coordinate{}) {
				t.Fatalf("second Load()=%v want (0,0)", again)
			}
			if region.Commits() != 1 {
				t.Fatalf("healed region should not be rewritten, commits=%d", region.Commits())
			}
		})
	}
}

func TestLoad_ErasedFileRegionHeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	region, err := nvram.OpenFile(path, nvram.DefaultSize)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s := newStore(t, region)
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (geo.Coordinate{}) {
		t.Fatalf("Load()=%v want (0,0)", got)
	}

	reopened, err := nvram.OpenFile(path, nvram.DefaultSize)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s2 := newStore(t, reopened)
	got, err = s2.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (geo.Coordinate{}) {
		t.Fatalf("persisted reset=%v want (0,0)", got)
	}
}

func TestSave_PersistsOutOfRangeAsIs(t *testing.T) {
	region := nvram.NewMem(nvram.DefaultSize)
	s := newStore(t, region)
	if err := s.Save(geo.Coordinate{Lat: 200, Lng: 5}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var b [8]byte
	_ = region.Get(0, b[:])
	if got := math.Float64frombits(binary.LittleEndian.Uint64(b[:])); got != 200 {
		t.Fatalf("raw lat=%v want 200", got)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (geo.Coordinate{}) {
		t.Fatalf("Load()=%v want healed (0,0)", got)
	}
}

type failingRegion struct {
	*nvram.Mem
}

func (failingRegion) Commit() error { return errors.New("flash worn out") }

func TestSave_CommitFailureSurfaces(t *testing.T) {
	s := newStore(t, failingRegion{nvram.NewMem(16)})
	err := s.Save(geo.Coordinate{Lat: 1, Lng: 2})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_RejectsSmallRegion(t *testing.T) {
	if _, err := New(nvram.NewMem(8), nil); err == nil {
		t.Fatalf("expected error for 8-byte region")
	}
}
