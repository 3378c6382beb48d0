package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/geodesic"
)

// BoundAround returns the lat/lon box covering a square of half-width radiusM
// centered on p. The box is padded by padM on every side.
func BoundAround(p Point, radiusM, padM float64) orb.Bound {
	b := orb.Bound{
		Min: orb.Point{p.Lon, p.Lat},
		Max: orb.Point{p.Lon, p.Lat},
	}
	// Corners of the local square are radiusM*sqrt2 away along the diagonals.
	dist := radiusM*math.Sqrt2 + padM
	for az := 0.0; az < 360; az += 45 {
		var lat, lon float64
		geodesic.WGS84.Direct(p.Lat, p.Lon, az, dist, &lat, &lon, nil)
		b = b.Extend(orb.Point{lon, lat})
	}
	return b
}
