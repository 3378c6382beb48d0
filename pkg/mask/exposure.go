package mask

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/geom"
	"horizonmask/pkg/raycast"
)

// minHitT ignores hits at the ray origin itself.
const minHitT = 1e-9

// SkyExposure returns the solid-angle weighted fraction of the upper
// hemisphere at p that is not occluded by mesh. The hemisphere is sampled at
// the centers of an nAz x nAlt grid of equal-angle cells.
func SkyExposure(p r3.Vec, mesh geom.Mesh, nAz, nAlt int) float64 {
	if nAz < 1 || nAlt < 1 {
		return 1
	}
	var open, total float64
	for j := 0; j < nAlt; j++ {
		a0 := (math.Pi / 2) * float64(j) / float64(nAlt)
		a1 := (math.Pi / 2) * float64(j+1) / float64(nAlt)
		// solid angle of the band, split evenly over the azimuth cells
		w := (math.Sin(a1) - math.Sin(a0)) / float64(nAz)
		sinAlt, cosAlt := math.Sincos((a0 + a1) / 2)
		for i := 0; i < nAz; i++ {
			sinAz, cosAz := math.Sincos(2 * math.Pi * (float64(i) + 0.5) / float64(nAz))
			dir := r3.Vec{X: cosAlt * sinAz, Y: cosAlt * cosAz, Z: sinAlt}
			total += w
			if !occluded(raycast.Ray{Origin: p, Dir: dir}, mesh) {
				open += w
			}
		}
	}
	return open / total
}

func occluded(ray raycast.Ray, mesh geom.Mesh) bool {
	for f := range mesh.Faces {
		a, b, c := mesh.Triangle(f)
		if t, ok := raycast.IntersectRay(ray, a, b, c); ok && t > minHitT {
			return true
		}
	}
	return false
}
