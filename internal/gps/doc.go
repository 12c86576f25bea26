// Package gps turns a GNSS receiver into a stream of position fixes.
//
// Raw NMEA bytes are pushed into a Decoder (RMC for position, GGA for
// satellites and fix quality). A Receiver owns the hardware side, buffers
// bytes on its own goroutine and exposes a non-blocking Poll that drains
// whatever arrived since the previous call.
package gps
