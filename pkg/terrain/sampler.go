package terrain

import (
	"math"

	"horizonmask/pkg/geo"
)

// CurvatureCoefficient combines earth curvature and standard refraction, in m/km².
const CurvatureCoefficient = 0.0675

// Sampler returns an elevation in meters at a point of the local plane.
type Sampler interface {
	Sample(x, y float64) float64
}

// Func adapts a plain function to Sampler.
type Func func(x, y float64) float64

// Sample implements Sampler.
func (f Func) Sample(x, y float64) float64 { return f(x, y) }

type gridSampler struct {
	frame *geo.LocalFrame
	grid  *Grid
}

// NewSampler samples g through the inverse of frame. Points outside the grid
// yield NoDataElevation.
func NewSampler(frame *geo.LocalFrame, g *Grid) Sampler {
	return &gridSampler{frame: frame, grid: g}
}

func (s *gridSampler) Sample(x, y float64) float64 {
	lat, lon := s.frame.Inverse(x, y)
	v, _ := s.grid.At(lat, lon)
	return v
}

// CurvatureDrop is the apparent drop of terrain at a horizontal distance, in meters.
func CurvatureDrop(distM float64) float64 {
	dKm := distM / 1000
	return CurvatureCoefficient * dKm * dKm
}

type corrected struct {
	inner Sampler
}

// Corrected applies the curvature and refraction drop relative to the frame
// origin to every sample. Non-finite inner values become NoDataElevation first.
func Corrected(s Sampler) Sampler {
	return corrected{inner: s}
}

func (c corrected) Sample(x, y float64) float64 {
	return sanitize(c.inner.Sample(x, y)) - CurvatureDrop(math.Hypot(x, y))
}
