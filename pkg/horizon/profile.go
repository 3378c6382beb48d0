// Package horizon reduces raw hemisphere scan hits to an azimuth/angle
// profile and exports it.
package horizon

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/geo"
	"horizonmask/pkg/raycast"
)

// AngleTolerance is the band around zero, in degrees, that is snapped to 0.
const AngleTolerance = 1e-6

// Sample is one azimuth column of a profile.
type Sample struct {
	AzimuthDeg float64 `json:"azimuth"`
	AngleDeg   float64 `json:"angle"`
	Blocked    bool    `json:"blocked"`
	Hit        r3.Vec  `json:"-"`
}

// Profile is the horizon of one view point: samples in strictly increasing
// azimuth over [0, 360).
type Profile struct {
	Samples    []Sample `json:"samples"`
	MaxAngle   float64  `json:"max_angle"`
	MaxAzimuth float64  `json:"max_azimuth"`
}

// Reduce converts raw scan hits into blocking angles relative to view.
func Reduce(raw []raycast.RawHit, view r3.Vec) (Profile, error) {
	if len(raw) == 0 {
		return Profile{}, fmt.Errorf("reduce: no scan columns")
	}

	p := Profile{Samples: make([]Sample, len(raw)), MaxAngle: math.Inf(-1)}
	prev := -1.0
	for i, h := range raw {
		if h.AzimuthDeg < 0 || h.AzimuthDeg >= 360 || h.AzimuthDeg <= prev {
			return Profile{}, fmt.Errorf("reduce: azimuth %v out of order at column %d", h.AzimuthDeg, i)
		}
		prev = h.AzimuthDeg

		d := r3.Sub(h.Point, view)
		angle := math.Atan2(d.Z, math.Hypot(d.X, d.Y)) * 180 / math.Pi
		if math.Abs(angle) < AngleTolerance {
			angle = 0
		}
		p.Samples[i] = Sample{AzimuthDeg: h.AzimuthDeg, AngleDeg: angle, Blocked: h.Blocked, Hit: h.Point}
		if angle > p.MaxAngle {
			p.MaxAngle = angle
			p.MaxAzimuth = h.AzimuthDeg
		}
	}
	return p, nil
}

// Shaded reports whether any column is blocked by terrain.
func (p Profile) Shaded() bool {
	for _, s := range p.Samples {
		if s.Blocked {
			return true
		}
	}
	return false
}

// AngleAt interpolates the blocking angle at azimuth az, wrapping around north.
func (p Profile) AngleAt(az float64) float64 {
	n := len(p.Samples)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return p.Samples[0].AngleDeg
	}
	az = geo.Wrap360(az)

	// first sample with azimuth > az
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if p.Samples[mid].AzimuthDeg <= az {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	a := p.Samples[(lo-1+n)%n]
	b := p.Samples[lo%n]

	span := geo.Wrap360(b.AzimuthDeg - a.AzimuthDeg)
	if span == 0 {
		return a.AngleDeg
	}
	f := geo.Wrap360(az-a.AzimuthDeg) / span
	return a.AngleDeg + f*(b.AngleDeg-a.AngleDeg)
}

// DegreeSample is one row of a horizon file.
type DegreeSample struct {
	Azimuth int `json:"azimuth"`
	Angle   int `json:"angle"`
}

// Degrees returns the profile at whole degrees 0..359. Each degree takes the
// highest sample rounding to it; degrees without a sample are interpolated.
func (p Profile) Degrees() []DegreeSample {
	best := make([]float64, 360)
	have := make([]bool, 360)
	for _, s := range p.Samples {
		d := int(math.Round(s.AzimuthDeg)) % 360
		if !have[d] || s.AngleDeg > best[d] {
			best[d] = s.AngleDeg
			have[d] = true
		}
	}

	out := make([]DegreeSample, 360)
	for d := range out {
		a := best[d]
		if !have[d] {
			a = p.AngleAt(float64(d))
		}
		out[d] = DegreeSample{Azimuth: d, Angle: int(math.Round(a))}
	}
	return out
}

// WithDomeHits returns a copy whose hit points are rebuilt on a dome of the
// given radius around view. Profiles restored from files carry angles only.
func (p Profile) WithDomeHits(view r3.Vec, radius float64) Profile {
	out := p
	out.Samples = make([]Sample, len(p.Samples))
	for i, s := range p.Samples {
		sa, ca := math.Sincos(s.AzimuthDeg * math.Pi / 180)
		se, ce := math.Sincos(s.AngleDeg * math.Pi / 180)
		s.Hit = r3.Add(view, r3.Vec{X: radius * ce * sa, Y: radius * ce * ca, Z: radius * se})
		out.Samples[i] = s
	}
	return out
}
