package geofence

import "gps-locker/internal/actuator"

// ServoLock maps lock states onto actuator angles.
type ServoLock struct {
	Actuator    actuator.Positioner
	LockedDeg   float64
	UnlockedDeg float64
}

func (s ServoLock) Lock() error {
	return s.Actuator.SetPosition(s.LockedDeg)
}

func (s ServoLock) Unlock() error {
	return s.Actuator.SetPosition(s.UnlockedDeg)
}
