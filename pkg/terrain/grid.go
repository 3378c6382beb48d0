package terrain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// NoDataElevation replaces missing or non-finite raster values so that
// everything downstream of the sampler stays total.
const NoDataElevation = 0.0

// edgeEps absorbs rounding when a coordinate lands on the outermost nodes.
const edgeEps = 1e-6

// Grid is a regular lat/lon raster. Row 0 is the northern edge, column 0 the
// western edge; samples sit on the grid nodes.
type Grid struct {
	North float64 // latitude of row 0
	West  float64 // longitude of column 0, may be below -180 when the grid crosses the date line
	DLat  float64 // degrees per row, positive
	DLon  float64 // degrees per column, positive
	Rows  int
	Cols  int
	Data  []float32 // row-major

	NoData    float32
	HasNoData bool
}

// NewGrid allocates a zero-filled grid.
func NewGrid(north, west, dLat, dLon float64, rows, cols int) (*Grid, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("grid needs at least 2x2 nodes, got %dx%d", rows, cols)
	}
	if dLat <= 0 || dLon <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive")
	}
	return &Grid{
		North: north,
		West:  west,
		DLat:  dLat,
		DLon:  dLon,
		Rows:  rows,
		Cols:  cols,
		Data:  make([]float32, rows*cols),
	}, nil
}

// Set stores a raw value at (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Cols+col] = float32(v)
}

// Value returns the sanitised value at (row, col).
func (g *Grid) Value(row, col int) float64 {
	v := g.Data[row*g.Cols+col]
	if g.HasNoData && v == g.NoData {
		return NoDataElevation
	}
	return sanitize(float64(v))
}

// Bound returns the lat/lon extent of the grid nodes.
func (g *Grid) Bound() orb.Bound {
	south := g.North - float64(g.Rows-1)*g.DLat
	east := g.West + float64(g.Cols-1)*g.DLon
	return orb.Bound{Min: orb.Point{g.West, south}, Max: orb.Point{east, g.North}}
}

// At returns the bilinearly interpolated elevation at lat/lon. ok is false when
// the coordinate lies outside the grid; the value is then NoDataElevation.
func (g *Grid) At(lat, lon float64) (elev float64, ok bool) {
	span := float64(g.Cols-1) * g.DLon
	for lon < g.West {
		lon += 360
	}
	for lon > g.West+span && lon-360 >= g.West {
		lon -= 360
	}

	r := (g.North - lat) / g.DLat
	c := (lon - g.West) / g.DLon
	maxR, maxC := float64(g.Rows-1), float64(g.Cols-1)
	if r < -edgeEps || c < -edgeEps || r > maxR+edgeEps || c > maxC+edgeEps || math.IsNaN(r+c) {
		return NoDataElevation, false
	}
	r = math.Min(math.Max(r, 0), maxR)
	c = math.Min(math.Max(c, 0), maxC)

	r0 := min(int(r), g.Rows-2)
	c0 := min(int(c), g.Cols-2)
	fr := r - float64(r0)
	fc := c - float64(c0)

	v00 := g.Value(r0, c0)
	v01 := g.Value(r0, c0+1)
	v10 := g.Value(r0+1, c0)
	v11 := g.Value(r0+1, c0+1)

	top := v00*(1-fc) + v01*fc
	bottom := v10*(1-fc) + v11*fc
	return top*(1-fr) + bottom*fr, true
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NoDataElevation
	}
	return v
}
