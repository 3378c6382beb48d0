// Package geom holds the small closed set of geometry kinds the mask pipeline
// produces, with value-returning transforms and an OBJ codec.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind identifies a geometry variant.
type Kind int

const (
	KindMesh Kind = iota
	KindSurface
	KindPolyline
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindSurface:
		return "surface"
	case KindPolyline:
		return "polyline"
	case KindPoint:
		return "point"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Geometry is implemented by Mesh, Surface, Polyline and RefPoint. Transform
// never modifies the receiver.
type Geometry interface {
	Kind() Kind
	Transform(Affine) Geometry
	Bounds() r3.Box
}

// Affine maps p to M*p + T.
type Affine struct {
	M [3][3]float64
	T r3.Vec
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{M: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translate returns a translation by v.
func Translate(v r3.Vec) Affine {
	a := Identity()
	a.T = v
	return a
}

// Scale returns a uniform scale by f about center.
func Scale(f float64, center r3.Vec) Affine {
	return Affine{
		M: [3][3]float64{{f, 0, 0}, {0, f, 0}, {0, 0, f}},
		T: r3.Scale(1-f, center),
	}
}

// RotateZ returns a rotation about the vertical axis through center. Positive
// angles turn clockwise when seen from above, like a compass bearing.
func RotateZ(deg float64, center r3.Vec) Affine {
	s, c := math.Sincos(deg * math.Pi / 180)
	rot := Affine{M: [3][3]float64{{c, s, 0}, {-s, c, 0}, {0, 0, 1}}}
	return Translate(r3.Scale(-1, center)).Then(rot).Then(Translate(center))
}

// Apply transforms a point.
func (a Affine) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: a.M[0][0]*p.X + a.M[0][1]*p.Y + a.M[0][2]*p.Z + a.T.X,
		Y: a.M[1][0]*p.X + a.M[1][1]*p.Y + a.M[1][2]*p.Z + a.T.Y,
		Z: a.M[2][0]*p.X + a.M[2][1]*p.Y + a.M[2][2]*p.Z + a.T.Z,
	}
}

// Then returns the transform applying a first and b second.
func (a Affine) Then(b Affine) Affine {
	var out Affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.M[i][j] = b.M[i][0]*a.M[0][j] + b.M[i][1]*a.M[1][j] + b.M[i][2]*a.M[2][j]
		}
	}
	out.T = b.Apply(a.T)
	return out
}

func boundsOf(pts []r3.Vec) r3.Box {
	if len(pts) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

func transformAll(a Affine, pts []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = a.Apply(p)
	}
	return out
}
