package horizon

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// SunPosition is the sun direction in compass convention (degrees, azimuth
// clockwise from north).
type SunPosition struct {
	AzimuthDeg  float64
	AltitudeDeg float64
}

// Sun returns the sun position for t at lat/lon.
func Sun(t time.Time, lat, lon float64) SunPosition {
	p := suncalc.GetPosition(t, lat, lon)
	// suncalc azimuth is radians from south, positive westward
	const rad2deg = 180 / math.Pi
	return SunPosition{
		AzimuthDeg:  math.Mod(p.Azimuth*rad2deg+180+360, 360),
		AltitudeDeg: p.Altitude * rad2deg,
	}
}

// SunBlocked reports whether the sun is below the horizon or behind terrain
// at time t.
func SunBlocked(p Profile, t time.Time, lat, lon float64) bool {
	s := Sun(t, lat, lon)
	if s.AltitudeDeg <= 0 {
		return true
	}
	return s.AltitudeDeg <= p.AngleAt(s.AzimuthDeg)
}

// SunHours sums the time the sun is above the terrain horizon on the UTC day
// of day, sampling every step.
func SunHours(p Profile, day time.Time, lat, lon float64, step time.Duration) time.Duration {
	if step <= 0 {
		step = 10 * time.Minute
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var lit time.Duration
	for t := start; t.Before(end); t = t.Add(step) {
		if !SunBlocked(p, t.Add(step/2), lat, lon) {
			lit += step
		}
	}
	return lit
}
