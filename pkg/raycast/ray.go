// Package raycast samples the sky dome around a view point against a terrain
// mesh and reports, per azimuth column, the highest blocked dome point.
package raycast

import "gonum.org/v1/gonum/spatial/r3"

// Ray is a segment from Origin to Origin+Dir. Dir is not normalised; the
// parameter t runs over [0, 1] along the segment.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
}

// At returns the point at parameter t.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Dir))
}

const parallelEps = 1e-12

// IntersectTriangle tests the segment r against triangle (a, b, c) with the
// Möller–Trumbore algorithm. It returns the segment parameter of the hit.
// Rays parallel to the triangle plane never hit.
func IntersectTriangle(r Ray, a, b, c r3.Vec) (float64, bool) {
	t, ok := intersect(r, a, b, c)
	if !ok || t > 1 {
		return 0, false
	}
	return t, true
}

// IntersectRay is IntersectTriangle without the far limit.
func IntersectRay(r Ray, a, b, c r3.Vec) (float64, bool) {
	return intersect(r, a, b, c)
}

func intersect(r Ray, a, b, c r3.Vec) (float64, bool) {
	e1 := r3.Sub(b, a)
	e2 := r3.Sub(c, a)
	p := r3.Cross(r.Dir, e2)
	det := r3.Dot(e1, p)
	if det > -parallelEps && det < parallelEps {
		return 0, false
	}
	inv := 1 / det

	s := r3.Sub(r.Origin, a)
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(r.Dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}
