package geo

import (
	"fmt"
	"math"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Point represents a geographic coordinate with an optional elevation in meters.
// Points are values and are never mutated after construction.
type Point struct {
	Lat       float64
	Lon       float64
	Elevation float64
}

// Valid reports whether the coordinate is within the usual lat/lon domain.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	const R = 6371000 // Earth radius in meters
	dLat := (p2.Lat - p1.Lat) * deg2rad
	dLon := (p2.Lon - p1.Lon) * deg2rad
	lat1 := p1.Lat * deg2rad
	lat2 := p2.Lat * deg2rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// DestinationPoint calculates the destination point from a start point, given distance (in meters) and bearing (in degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	const R = 6371000 // Earth radius in meters
	lat1 := start.Lat * deg2rad
	lon1 := start.Lon * deg2rad
	brng := bearing * deg2rad

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(distMeters/R) +
		math.Cos(lat1)*math.Sin(distMeters/R)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(distMeters/R)*math.Cos(lat1),
		math.Cos(distMeters/R)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat:       lat2 * rad2deg,
		Lon:       NormalizeAngle(lon2 * rad2deg),
		Elevation: start.Elevation,
	}
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in degrees.
func Bearing(p1, p2 Point) float64 {
	lat1 := p1.Lat * deg2rad
	lat2 := p2.Lat * deg2rad
	dLon := (p2.Lon - p1.Lon) * deg2rad

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(y, x)

	return Wrap360(brng * rad2deg)
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}

// Wrap360 maps any angle in degrees to [0, 360).
func Wrap360(angleDeg float64) float64 {
	a := math.Mod(angleDeg, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
