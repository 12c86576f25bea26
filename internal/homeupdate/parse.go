package homeupdate

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gps-locker/internal/geo"
)

// Parse splits payload on the first comma and converts both halves.
//
// Lenient mode (strict=false) keeps the firmware's contract: each half is
// read up to the end of its leading numeric prefix and becomes 0 when there
// is none, and only the (0,0) pair is rejected. Strict mode requires both
// halves to be complete numbers forming a valid coordinate.
func Parse(payload []byte, strict bool) (geo.Coordinate, error) {
	// Text payloads end at the first NUL, like a C string.
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	s := string(payload)

	comma := strings.IndexByte(s, ',')
	if comma <= 0 {
		return geo.Coordinate{}, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}
	latStr, lngStr := s[:comma], s[comma+1:]

	if strict {
		return parseStrict(latStr, lngStr)
	}

	c := geo.Coordinate{Lat: leadingFloat(latStr), Lng: leadingFloat(lngStr)}
	if c.Lat == 0 && c.Lng == 0 {
		return c, fmt.Errorf("%w: %q parsed as 0,0", ErrInvalidCoordinate, s)
	}
	return c, nil
}

func parseStrict(latStr, lngStr string) (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinate, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinate, lngStr)
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return c, fmt.Errorf("%w: %s out of range", ErrInvalidCoordinate, c)
	}
	return c, nil
}

// leadingFloat parses the longest prefix of s matching
// [ws][+-]digits[.digits][(e|E)[+-]digits] and returns 0 when nothing
// numeric leads the string. Unlike C atof, "inf", "nan" and hex floats are
// not numeric here and read as 0.
func leadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	mantissa := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		mantissa++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			mantissa++
		}
	}
	if mantissa == 0 {
		return 0
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	// The prefix is well-formed, so the only possible error is a range
	// error, for which ParseFloat still returns ±Inf or 0.
	v, _ := strconv.ParseFloat(s[:end], 64)
	return v
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
