// Package geo holds the coordinate type shared by the lock and the
// great-circle distance used to decide proximity.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// EarthRadiusM is the mean Earth radius used by Distance.
const EarthRadiusM = 6371000.0

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a real position: no NaN, latitude within
// [-90,90] and longitude within [-180,180].
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// MarshalJSON writes a non-finite component as null.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}{JSONFloat(c.Lat), JSONFloat(c.Lng)})
}

// JSONFloat returns &v, or nil when v is NaN or infinite and so has no JSON
// number form.
func JSONFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Distance returns the haversine great-circle distance between a and b in
// meters. A non-finite component in either input yields +Inf.
func Distance(a, b Coordinate) float64 {
	if !finite(a) || !finite(b) {
		return math.Inf(1)
	}
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lng - a.Lng)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	h := sLat*sLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sLon*sLon
	// Rounding can push h slightly outside [0,1] near antipodal points.
	if h < 0 {
		h = 0
	} else if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func finite(c Coordinate) bool {
	return JSONFloat(c.Lat) != nil && JSONFloat(c.Lng) != nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
