package gps

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gps-locker/internal/geo"
)

// maxSentenceLen bounds a buffered sentence. NMEA 0183 allows 82 chars;
// leave headroom for vendor extensions.
const maxSentenceLen = 256

type nmeaSentence struct {
	Type string
	// Fields is the comma-split NMEA payload (excluding $ and checksum).
	Fields []string
}

var errChecksum = fmt.Errorf("nmea: checksum mismatch")

func parseNMEASentence(line string) (nmeaSentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nmeaSentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return nmeaSentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return nmeaSentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return nmeaSentence{}, fmt.Errorf("nmea: bad checksum")
	}
	got := byte(0)
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if got != want[0] {
		return nmeaSentence{}, errChecksum
	}

	parts := strings.Split(payload, ",")
	typeField := parts[0]
	if len(typeField) < 3 {
		return nmeaSentence{}, fmt.Errorf("nmea: short type")
	}
	// Accept GNxxx/GPxxx, etc; normalize to last 3 chars.
	t := typeField[len(typeField)-3:]
	return nmeaSentence{Type: strings.ToUpper(t), Fields: parts}, nil
}

// Fix is one decoded position.
type Fix struct {
	geo.Coordinate
	Valid bool      `json:"valid"`
	At    time.Time `json:"at"`
}

// MarshalJSON keeps the flat lat/lng/valid/at shape; the promoted
// Coordinate marshaler would otherwise encode only the position.
func (f Fix) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lat   *float64  `json:"lat"`
		Lng   *float64  `json:"lng"`
		Valid bool      `json:"valid"`
		At    time.Time `json:"at"`
	}{geo.JSONFloat(f.Lat), geo.JSONFloat(f.Lng), f.Valid, f.At})
}

// Stats are decoder counters for the periodic status report.
type Stats struct {
	CharsProcessed   uint64 `json:"chars_processed"`
	SentencesWithFix uint64 `json:"sentences_with_fix"`
	FailedChecksum   uint64 `json:"failed_checksum"`
	PassedChecksum   uint64 `json:"passed_checksum"`
	Satellites       int    `json:"satellites"`
	SatellitesValid  bool   `json:"satellites_valid"`
	FixQuality       int    `json:"fix_quality"`
	LastError        string `json:"last_error,omitempty"`
}

// Decoder accumulates NMEA bytes and tracks the latest fix.
//
// Not safe for concurrent use.
type Decoder struct {
	now func() time.Time
	// trace, when set, sees the type of every checksummed sentence.
	trace func(sentenceType string)

	buf      []byte
	overflow bool

	lat, lng float64
	valid    bool
	updated  bool
	lastFix  time.Time

	stats Stats
}

func NewDecoder() *Decoder {
	return &Decoder{now: time.Now, buf: make([]byte, 0, maxSentenceLen)}
}

// Write feeds raw receiver bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, c := range p {
		d.encode(c)
	}
	return len(p), nil
}

func (d *Decoder) encode(c byte) {
	d.stats.CharsProcessed++
	switch c {
	case '$':
		d.buf = append(d.buf[:0], c)
		d.overflow = false
	case '\r', '\n':
		if len(d.buf) > 0 && !d.overflow {
			d.sentence(string(d.buf))
		}
		d.buf = d.buf[:0]
		d.overflow = false
	default:
		if len(d.buf) == 0 {
			// Chatter between sentences.
			return
		}
		if len(d.buf) >= maxSentenceLen {
			d.overflow = true
			return
		}
		d.buf = append(d.buf, c)
	}
}

func (d *Decoder) sentence(line string) {
	sent, err := parseNMEASentence(line)
	if err != nil {
		if err == errChecksum {
			d.stats.FailedChecksum++
		}
		d.stats.LastError = err.Error()
		return
	}
	d.stats.PassedChecksum++
	if d.trace != nil {
		d.trace(sent.Type)
	}

	switch sent.Type {
	case "RMC":
		d.applyRMC(sent.Fields)
	case "GGA":
		d.applyGGA(sent.Fields)
	}
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)
//	4: N/S
//	5: longitude (dddmm.mmmm)
//	6: E/W
func (d *Decoder) applyRMC(f []string) {
	if len(f) < 7 {
		return
	}
	if strings.TrimSpace(f[2]) != "A" {
		// A void fix invalidates the location.
		d.valid = false
		return
	}
	d.setLocation(f[3], f[4], f[5], f[6])
}

// GGA: Global Positioning System Fix Data
//
//	2..5: latitude, N/S, longitude, E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
func (d *Decoder) applyGGA(f []string) {
	if len(f) < 8 {
		return
	}
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		d.stats.Satellites = sats
		d.stats.SatellitesValid = true
	}
	q, err := strconv.Atoi(strings.TrimSpace(f[6]))
	if err != nil {
		return
	}
	d.stats.FixQuality = q
	if q == 0 {
		d.valid = false
		return
	}
	d.setLocation(f[2], f[3], f[4], f[5])
}

func (d *Decoder) setLocation(lat, latHemi, lng, lngHemi string) {
	la, latOK := parseNMEALatLon(lat, latHemi)
	lo, lngOK := parseNMEALatLon(lng, lngHemi)
	if !latOK || !lngOK {
		return
	}
	d.lat, d.lng = la, lo
	d.valid = true
	d.updated = true
	d.lastFix = d.now().UTC()
	d.stats.SentencesWithFix++
}

// TakeFix returns the newest valid fix decoded since the previous call.
func (d *Decoder) TakeFix() (Fix, bool) {
	if !d.updated || !d.valid {
		return Fix{}, false
	}
	d.updated = false
	return Fix{Coordinate: geo.Coordinate{Lat: d.lat, Lng: d.lng}, Valid: true, At: d.lastFix}, true
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// parseNMEALatLon parses NMEA lat/lon in ddmm.mmmm or dddmm.mmmm plus hemisphere.
func parseNMEALatLon(v string, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	// The last two digits of the integer part are whole minutes.
	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil {
		return 0, false
	}

	dec := float64(deg) + (mins / 60.0)
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}
