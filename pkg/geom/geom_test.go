package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(t *testing.T, want, got r3.Vec, tol float64) {
	t.Helper()
	if r3.Norm(r3.Sub(want, got)) > tol {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAffine(t *testing.T) {
	center := r3.Vec{X: 10, Y: 10, Z: 0}

	tests := []struct {
		name string
		a    Affine
		in   r3.Vec
		want r3.Vec
	}{
		{"Identity", Identity(), r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1, Y: 2, Z: 3}},
		{"Translate", Translate(r3.Vec{X: 1, Y: -1, Z: 2}), r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 2, Y: 1, Z: 5}},
		{"ScaleAboutCenter", Scale(2, center), r3.Vec{X: 11, Y: 10, Z: 1}, r3.Vec{X: 12, Y: 10, Z: 2}},
		{"RotateNorthToEast", RotateZ(90, r3.Vec{}), r3.Vec{Y: 1}, r3.Vec{X: 1}},
		{"RotateAboutCenter", RotateZ(180, center), r3.Vec{X: 10, Y: 12, Z: 5}, r3.Vec{X: 10, Y: 8, Z: 5}},
		{"Composed", Scale(2, r3.Vec{}).Then(Translate(r3.Vec{X: 1})), r3.Vec{X: 1}, r3.Vec{X: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecNear(t, tt.want, tt.a.Apply(tt.in), 1e-12)
		})
	}
}

func TestTransformDoesNotMutate(t *testing.T) {
	m := Mesh{
		Vertices: []r3.Vec{{X: 0}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	moved := m.Transform(Translate(r3.Vec{Z: 5})).(Mesh)

	assert.Equal(t, 0.0, m.Vertices[0].Z)
	assert.Equal(t, 5.0, moved.Vertices[0].Z)
	assert.Equal(t, KindMesh, moved.Kind())

	p := RefPoint{Name: "origin"}
	q := p.Transform(Translate(r3.Vec{X: 2})).(RefPoint)
	assert.Equal(t, r3.Vec{}, p.P)
	assert.Equal(t, "origin", q.Name)
	assert.Equal(t, 2.0, q.P.X)
}

func TestBounds(t *testing.T) {
	pl := Polyline{Points: []r3.Vec{{X: -1, Y: 2, Z: 0}, {X: 3, Y: -4, Z: 5}}}
	b := pl.Bounds()
	assert.Equal(t, r3.Vec{X: -1, Y: -4, Z: 0}, b.Min)
	assert.Equal(t, r3.Vec{X: 3, Y: 2, Z: 5}, b.Max)
	assert.Equal(t, r3.Box{}, Mesh{}.Bounds())
}

func TestWeld(t *testing.T) {
	// Two triangles of a unit square sharing an edge, with the shared
	// vertices duplicated, a degenerate sliver and a repeated face.
	m := Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1},
			{X: 0, Y: 0}, {X: 1, Y: 1 + 1e-12}, {X: 0, Y: 1},
			{X: 5, Y: 5},
		},
		Faces: [][3]int{
			{0, 1, 2},
			{3, 4, 5},
			{0, 3, 1},
			{2, 1, 0},
		},
	}

	got, stats := m.Weld(1e-6)
	assert.Equal(t, 2, stats.MergedVertices)
	assert.Equal(t, 1, stats.DegenerateFaces)
	assert.Equal(t, 1, stats.DuplicateFaces)
	assert.Len(t, got.Faces, 2)
	assert.Len(t, got.Vertices, 4, "unused vertex must be dropped")
	assert.InDelta(t, 1.0, got.Area(), 1e-9)
}

func TestSurfaceTessellate(t *testing.T) {
	// 2 rings of 4 points around the z axis, closed in U.
	var pts []r3.Vec
	for r := 0; r < 2; r++ {
		for c := 0; c < 4; c++ {
			a := float64(c) * math.Pi / 2
			pts = append(pts, r3.Vec{X: math.Cos(a), Y: math.Sin(a), Z: float64(r)})
		}
	}
	s := Surface{Rows: 2, Cols: 4, Points: pts, ClosedU: true}
	m := s.Tessellate()
	assert.Len(t, m.Faces, 8)
	// Lateral area of a square prism inscribed in the unit circle.
	assert.InDelta(t, 4*math.Sqrt2, m.Area(), 1e-9)

	s.ClosedU = false
	assert.Len(t, s.Tessellate().Faces, 6)
	assert.Equal(t, pts[5], s.At(1, 1))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "mesh", KindMesh.String())
	assert.Equal(t, "surface", KindSurface.String())
	assert.Equal(t, "polyline", KindPolyline.String())
	assert.Equal(t, "point", KindPoint.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
