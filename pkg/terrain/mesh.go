package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/model"
)

// MeshOptions bounds the size of a terrain mesh.
type MeshOptions struct {
	MaxGridSide int // vertices per side
	PatchCells  int // cells per patch side
}

// DefaultMeshOptions keeps a mesh around 1.4M vertices.
var DefaultMeshOptions = MeshOptions{MaxGridSide: 1201, PatchCells: 16}

// Mesh is a square height-field triangle grid centered on the local origin,
// split into two triangles per cell. It is read-only once built.
type Mesh struct {
	Cell float64   // cell size in meters
	N    int       // vertices per side
	Min  float64   // coordinate of vertex 0 on both axes
	Z    []float64 // N*N heights, row j (south to north) major

	PatchCells int
	Patches    []Patch
	patchSide  int
}

// Patch is a block of cells with its extent and height range, used for culling.
type Patch struct {
	ID                     int
	I0, J0, I1, J1         int // cells [I0, I1) x [J0, J1)
	MinX, MinY, MaxX, MaxY float64
	ZMin, ZMax             float64
}

// BuildMesh samples s on a square grid of half-width radiusM. The cell size is
// raised when the grid would exceed opts.MaxGridSide vertices per side.
func BuildMesh(ctx context.Context, s Sampler, radiusM, cellM float64, opts MeshOptions) (*Mesh, error) {
	if radiusM <= 0 || cellM <= 0 || math.IsNaN(radiusM+cellM) {
		return nil, &model.GeometryError{Stage: "mesh", Err: fmt.Errorf("radius %.1f and cell %.1f must be positive", radiusM, cellM)}
	}
	if opts.MaxGridSide < 3 {
		opts.MaxGridSide = DefaultMeshOptions.MaxGridSide
	}
	if opts.PatchCells < 1 {
		opts.PatchCells = DefaultMeshOptions.PatchCells
	}

	cells := int(math.Ceil(2 * radiusM / cellM))
	cells = max(cells, 2)
	if cells+1 > opts.MaxGridSide {
		cells = opts.MaxGridSide - 1
	}
	n := cells + 1

	m := &Mesh{
		Cell:       2 * radiusM / float64(cells),
		N:          n,
		Min:        -radiusM,
		Z:          make([]float64, n*n),
		PatchCells: opts.PatchCells,
	}

	for j := 0; j < n; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := m.Min + float64(j)*m.Cell
		for i := 0; i < n; i++ {
			x := m.Min + float64(i)*m.Cell
			m.Z[j*n+i] = sanitize(s.Sample(x, y))
		}
	}

	m.buildPatches()
	return m, nil
}

func (m *Mesh) buildPatches() {
	cells := m.N - 1
	pc := m.PatchCells
	side := (cells + pc - 1) / pc
	m.patchSide = side
	m.Patches = make([]Patch, 0, side*side)

	for pj := 0; pj < side; pj++ {
		for pi := 0; pi < side; pi++ {
			p := Patch{
				ID:   pj*side + pi,
				I0:   pi * pc,
				J0:   pj * pc,
				I1:   min((pi+1)*pc, cells),
				J1:   min((pj+1)*pc, cells),
				ZMin: math.Inf(1),
				ZMax: math.Inf(-1),
			}
			p.MinX = m.Min + float64(p.I0)*m.Cell
			p.MaxX = m.Min + float64(p.I1)*m.Cell
			p.MinY = m.Min + float64(p.J0)*m.Cell
			p.MaxY = m.Min + float64(p.J1)*m.Cell
			for j := p.J0; j <= p.J1; j++ {
				for i := p.I0; i <= p.I1; i++ {
					z := m.Z[j*m.N+i]
					p.ZMin = math.Min(p.ZMin, z)
					p.ZMax = math.Max(p.ZMax, z)
				}
			}
			m.Patches = append(m.Patches, p)
		}
	}
}

// Cells returns the number of cells per side.
func (m *Mesh) Cells() int { return m.N - 1 }

// Radius returns the half-width of the mesh.
func (m *Mesh) Radius() float64 { return -m.Min }

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int { return 2 * m.Cells() * m.Cells() }

// Vertex returns grid vertex (i, j).
func (m *Mesh) Vertex(i, j int) r3.Vec {
	return r3.Vec{
		X: m.Min + float64(i)*m.Cell,
		Y: m.Min + float64(j)*m.Cell,
		Z: m.Z[j*m.N+i],
	}
}

// CellTriangles returns the two triangles of cell (i, j). The cell is split
// along the diagonal from (i, j) to (i+1, j+1).
func (m *Mesh) CellTriangles(i, j int) [2][3]r3.Vec {
	v00 := m.Vertex(i, j)
	v10 := m.Vertex(i+1, j)
	v11 := m.Vertex(i+1, j+1)
	v01 := m.Vertex(i, j+1)
	return [2][3]r3.Vec{{v00, v10, v11}, {v00, v11, v01}}
}

// PatchOf returns the index into Patches of the patch holding cell (i, j).
func (m *Mesh) PatchOf(i, j int) int {
	return (j/m.PatchCells)*m.patchSide + i/m.PatchCells
}

// ErrOutsideMesh is returned by Height for points off the grid.
var ErrOutsideMesh = errors.New("point outside terrain mesh")

// Height interpolates the mesh surface at (x, y) on the same triangles the ray
// caster intersects.
func (m *Mesh) Height(x, y float64) (float64, error) {
	gx := (x - m.Min) / m.Cell
	gy := (y - m.Min) / m.Cell
	cells := float64(m.Cells())
	if gx < 0 || gy < 0 || gx > cells || gy > cells {
		return 0, ErrOutsideMesh
	}
	i := min(int(gx), m.Cells()-1)
	j := min(int(gy), m.Cells()-1)
	u := gx - float64(i)
	v := gy - float64(j)

	z00 := m.Z[j*m.N+i]
	z10 := m.Z[j*m.N+i+1]
	z11 := m.Z[(j+1)*m.N+i+1]
	z01 := m.Z[(j+1)*m.N+i]
	if u >= v {
		return z00 + u*(z10-z00) + v*(z11-z10), nil
	}
	return z00 + v*(z01-z00) + u*(z11-z01), nil
}

// WalkCells visits, in order, the cells crossed by the horizontal segment from
// (x0, y0) to (x1, y1). s is the distance from (x0, y0) at which the segment
// enters the cell. Returning false from visit stops the walk.
func (m *Mesh) WalkCells(x0, y0, x1, y1 float64, visit func(i, j int, s float64) bool) {
	n := m.Cells()
	fn := float64(n)
	gx0 := (x0 - m.Min) / m.Cell
	gy0 := (y0 - m.Min) / m.Cell
	dx := (x1 - x0) / m.Cell
	dy := (y1 - y0) / m.Cell
	length := math.Hypot(x1-x0, y1-y0)

	t0, t1 := 0.0, 1.0
	clip := func(g, d float64) bool {
		if d == 0 {
			return g >= 0 && g <= fn
		}
		ta, tb := -g/d, (fn-g)/d
		if ta > tb {
			ta, tb = tb, ta
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
		return t0 <= t1
	}
	if !clip(gx0, dx) || !clip(gy0, dy) {
		return
	}

	sx := gx0 + t0*dx
	sy := gy0 + t0*dy
	i := clampInt(int(math.Floor(sx)), 0, n-1)
	j := clampInt(int(math.Floor(sy)), 0, n-1)

	stepI, tMaxX, tDeltaX := walkAxis(i, sx, dx, t0)
	stepJ, tMaxY, tDeltaY := walkAxis(j, sy, dy, t0)

	t := t0
	for {
		if !visit(i, j, t*length) {
			return
		}
		if tMaxX < tMaxY {
			t = tMaxX
			i += stepI
			tMaxX += tDeltaX
		} else {
			t = tMaxY
			j += stepJ
			tMaxY += tDeltaY
		}
		if t > t1 || i < 0 || i >= n || j < 0 || j >= n {
			return
		}
	}
}

func walkAxis(cell int, start, d, t0 float64) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, t0 + (float64(cell+1)-start)/d, 1 / d
	case d < 0:
		return -1, t0 + (float64(cell)-start)/d, -1 / d
	}
	return 0, math.Inf(1), math.Inf(1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
