package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
}

func (m Mesh) Kind() Kind { return KindMesh }

func (m Mesh) Bounds() r3.Box { return boundsOf(m.Vertices) }

// Transform implements Geometry. Faces are shared with the receiver; they
// are never modified in place.
func (m Mesh) Transform(a Affine) Geometry { return m.Transformed(a) }

// Transformed is Transform with a concrete result.
func (m Mesh) Transformed(a Affine) Mesh {
	return Mesh{Vertices: transformAll(a, m.Vertices), Faces: m.Faces}
}

// Triangle returns the corners of face f.
func (m Mesh) Triangle(f int) (r3.Vec, r3.Vec, r3.Vec) {
	face := m.Faces[f]
	return m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]
}

// Area returns the total face area.
func (m Mesh) Area() float64 {
	var sum float64
	for f := range m.Faces {
		a, b, c := m.Triangle(f)
		sum += triangleArea(a, b, c)
	}
	return sum
}

func triangleArea(a, b, c r3.Vec) float64 {
	return r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
}

// WeldStats reports what Weld removed.
type WeldStats struct {
	MergedVertices  int
	DegenerateFaces int
	DuplicateFaces  int
}

// Weld merges vertices closer than eps (snapped to an eps grid), drops faces
// that collapse and faces repeating an existing vertex set, and removes
// unreferenced vertices.
func (m Mesh) Weld(eps float64) (Mesh, WeldStats) {
	var stats WeldStats
	if eps <= 0 {
		eps = 1e-9
	}

	type key [3]int64
	snap := func(p r3.Vec) key {
		return key{int64(math.Round(p.X / eps)), int64(math.Round(p.Y / eps)), int64(math.Round(p.Z / eps))}
	}

	remap := make([]int, len(m.Vertices))
	byKey := make(map[key]int, len(m.Vertices))
	var merged []r3.Vec
	for i, v := range m.Vertices {
		k := snap(v)
		if idx, ok := byKey[k]; ok {
			remap[i] = idx
			stats.MergedVertices++
			continue
		}
		byKey[k] = len(merged)
		remap[i] = len(merged)
		merged = append(merged, v)
	}

	seen := make(map[[3]int]struct{}, len(m.Faces))
	used := make([]bool, len(merged))
	faces := make([][3]int, 0, len(m.Faces))
	for _, f := range m.Faces {
		nf := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[0] == nf[2] ||
			triangleArea(merged[nf[0]], merged[nf[1]], merged[nf[2]]) < eps*eps {
			stats.DegenerateFaces++
			continue
		}
		sorted := sort3(nf)
		if _, dup := seen[sorted]; dup {
			stats.DuplicateFaces++
			continue
		}
		seen[sorted] = struct{}{}
		faces = append(faces, nf)
		used[nf[0]], used[nf[1]], used[nf[2]] = true, true, true
	}

	compact := make([]int, len(merged))
	out := Mesh{Faces: faces}
	for i, v := range merged {
		if used[i] {
			compact[i] = len(out.Vertices)
			out.Vertices = append(out.Vertices, v)
		}
	}
	for i := range out.Faces {
		for k := 0; k < 3; k++ {
			out.Faces[i][k] = compact[out.Faces[i][k]]
		}
	}
	return out, stats
}

func sort3(f [3]int) [3]int {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}

// Surface is a lofted quad grid of Rows x Cols control points, row major.
// With ClosedU the last column connects back to the first.
type Surface struct {
	Rows, Cols int
	Points     []r3.Vec
	ClosedU    bool
}

func (s Surface) Kind() Kind { return KindSurface }

func (s Surface) Bounds() r3.Box { return boundsOf(s.Points) }

func (s Surface) Transform(a Affine) Geometry {
	return Surface{Rows: s.Rows, Cols: s.Cols, Points: transformAll(a, s.Points), ClosedU: s.ClosedU}
}

// At returns control point (row, col).
func (s Surface) At(row, col int) r3.Vec { return s.Points[row*s.Cols+col] }

// Tessellate splits every grid quad into two triangles.
func (s Surface) Tessellate() Mesh {
	m := Mesh{Vertices: append([]r3.Vec(nil), s.Points...)}
	cols := s.Cols - 1
	if s.ClosedU {
		cols = s.Cols
	}
	for r := 0; r+1 < s.Rows; r++ {
		for c := 0; c < cols; c++ {
			c1 := (c + 1) % s.Cols
			v00 := r*s.Cols + c
			v01 := r*s.Cols + c1
			v10 := (r+1)*s.Cols + c
			v11 := (r+1)*s.Cols + c1
			m.Faces = append(m.Faces, [3]int{v00, v01, v11}, [3]int{v00, v11, v10})
		}
	}
	return m
}

// Polyline is an ordered point chain.
type Polyline struct {
	Points []r3.Vec
	Closed bool
}

func (p Polyline) Kind() Kind { return KindPolyline }

func (p Polyline) Bounds() r3.Box { return boundsOf(p.Points) }

func (p Polyline) Transform(a Affine) Geometry {
	return Polyline{Points: transformAll(a, p.Points), Closed: p.Closed}
}

// RefPoint is a named marker such as the mask origin.
type RefPoint struct {
	Name string
	P    r3.Vec
}

func (p RefPoint) Kind() Kind { return KindPoint }

func (p RefPoint) Bounds() r3.Box { return r3.Box{Min: p.P, Max: p.P} }

func (p RefPoint) Transform(a Affine) Geometry {
	return RefPoint{Name: p.Name, P: a.Apply(p.P)}
}
