package geo

import (
	"fmt"
	"math"

	"horizonmask/pkg/model"
)

// Band is the latitude coverage of an elevation source, in degrees.
type Band struct {
	South float64
	North float64
}

// Global covers the whole globe.
var Global = Band{South: -90, North: 90}

// Contains reports whether lat lies inside the band (edges included).
func (b Band) Contains(lat float64) bool {
	return lat >= b.South && lat <= b.North
}

func (b Band) String() string {
	return fmt.Sprintf("[%.2f, %.2f]", b.South, b.North)
}

// EdgeDistance returns the ellipsoidal distance along the meridian from p to the
// nearest band edge. Edges at the poles are ignored since nothing lies beyond them.
func (b Band) EdgeDistance(p Point) float64 {
	edge := math.Inf(1)
	if b.North < 90 {
		edge = math.Min(edge, InverseDistance(p, Point{Lat: b.North, Lon: p.Lon}, WGS84).DistanceM)
	}
	if b.South > -90 {
		edge = math.Min(edge, InverseDistance(p, Point{Lat: b.South, Lon: p.Lon}, WGS84).DistanceM)
	}
	return edge
}

// Clamp is the outcome of ClampRadius.
type Clamp struct {
	RequestedM float64
	RadiusM    float64
	EdgeM      float64 // distance to the nearest band edge
	Clamped    bool
}

// ClampRadius caps a requested visibility radius to the distance between p and the
// nearest edge of the band, minus marginM.
//
// Whenever the radius had to be reduced the returned error is a *model.DomainLimitError
// carrying the permissible maximum; Clamp.RadiusM then holds that maximum so callers can
// choose to proceed. Clamping an already clamped radius is a no-op.
func ClampRadius(p Point, requestedM float64, band Band, marginM float64) (Clamp, error) {
	c := Clamp{RequestedM: requestedM, RadiusM: requestedM}

	if !band.Contains(p.Lat) {
		return Clamp{RequestedM: requestedM}, &model.DomainLimitError{
			RequestedM: requestedM,
			MaxM:       0,
			Suggestion: fmt.Sprintf("latitude %.4f is outside the elevation coverage %s; choose a location inside it", p.Lat, band),
		}
	}

	c.EdgeM = band.EdgeDistance(p)
	maxM := c.EdgeM - marginM
	if requestedM <= maxM {
		return c, nil
	}

	if maxM < 0 {
		maxM = 0
	}
	c.RadiusM = maxM
	c.Clamped = true

	return c, &model.DomainLimitError{
		RequestedM: requestedM,
		MaxM:       maxM,
		Suggestion: fmt.Sprintf("reduce the maximum visibility radius to %.3f km or less", maxM/1000),
	}
}
