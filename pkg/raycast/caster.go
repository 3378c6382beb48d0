package raycast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/logging"
	"horizonmask/pkg/model"
	"horizonmask/pkg/terrain"
)

// Options controls a hemisphere scan.
type Options struct {
	PrecisionAzimuth  int     // columns over [0, 360)
	PrecisionAltitude int     // steps over [0, 90)
	Radius            float64 // dome radius in mesh units
	MinRadius         float64 // hits closer than this (horizontally) are ignored
	Style             model.Style
	Workers           int     // 0 = one per CPU
	Lift              float64 // vertical offset of the ray origin
	Bisect            bool    // binary search the altitude column; ignored with MinRadius
}

// RawHit is the recorded dome point of one azimuth column. Point is relative
// to the unlifted view point's frame (view + dome offset).
type RawHit struct {
	AzimuthDeg   float64
	Point        r3.Vec
	Blocked      bool
	AltitudeStep int
}

// Caster runs hemisphere scans.
type Caster struct {
	logger *slog.Logger
}

// NewCaster creates a caster logging to logger (slog.Default when nil).
func NewCaster(logger *slog.Logger) *Caster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Caster{logger: logger}
}

func (o Options) validate() error {
	bad := func(field string, v any, reason string) error {
		return &model.ValidationError{Field: field, Value: v, Reason: reason}
	}
	switch {
	case o.PrecisionAzimuth <= 0:
		return bad("scan.precision_azimuth", o.PrecisionAzimuth, "must be positive")
	case o.PrecisionAltitude <= 0:
		return bad("scan.precision_altitude", o.PrecisionAltitude, "must be positive")
	case o.Radius <= 0 || math.IsNaN(o.Radius):
		return bad("scan.radius", o.Radius, "must be positive")
	case o.MinRadius < 0 || o.MinRadius >= o.Radius:
		return bad("scan.min_radius", o.MinRadius, "must be within [0, radius)")
	}
	return nil
}

// CastHorizon scans every azimuth column of the dome around view against the
// mesh. The result has exactly PrecisionAzimuth entries in increasing azimuth
// order. Columns run in parallel and each writes only its own slot.
func (c *Caster) CastHorizon(ctx context.Context, view r3.Vec, mesh *terrain.Mesh, opts Options) ([]RawHit, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if mesh == nil || len(mesh.Patches) == 0 {
		return nil, &model.GeometryError{Stage: "raycast", Err: fmt.Errorf("empty terrain mesh")}
	}
	style, err := model.ParseStyle(string(opts.Style))
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if opts.Bisect && opts.MinRadius > 0 {
		c.logger.Debug("Bisection disabled by min radius, ascending full columns", "min_radius", opts.MinRadius)
	}

	start := time.Now()
	index := NewIndex(mesh)
	origin := r3.Add(view, r3.Vec{Z: opts.Lift})
	hits := make([]RawHit, opts.PrecisionAzimuth)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range hits {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			az := 360 * float64(i) / float64(opts.PrecisionAzimuth)
			col := newColumn(index, mesh, origin, az, style, opts)
			hits[i] = col.scan(view)
			logging.Trace(c.logger, "column scanned", "azimuth", az, "blocked", hits[i].Blocked, "step", hits[i].AltitudeStep, "patches", len(col.runs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocked := 0
	for i := range hits {
		if hits[i].Blocked {
			blocked++
		}
	}
	c.logger.Info("Hemisphere scan finished",
		"columns", opts.PrecisionAzimuth,
		"altitude_steps", opts.PrecisionAltitude,
		"blocked_columns", blocked,
		"triangles", mesh.TriangleCount(),
		"style", style,
		"duration", time.Since(start))
	return hits, nil
}

type cellRef struct {
	i, j int
	s    float64
}

// patchRun is the part of a column footprint inside one patch.
type patchRun struct {
	sIn, sOut float64
	zMax      float64
	cells     []cellRef
}

type column struct {
	mesh      *terrain.Mesh
	origin    r3.Vec
	az        float64
	sinAz     float64
	cosAz     float64
	style     model.Style
	radius    float64
	minRadius float64
	steps     int
	bisect    bool
	runs      []patchRun
}

func newColumn(ix *Index, mesh *terrain.Mesh, origin r3.Vec, az float64, style model.Style, opts Options) *column {
	sinAz, cosAz := math.Sincos(az * math.Pi / 180)
	col := &column{
		mesh:      mesh,
		origin:    origin,
		az:        az,
		sinAz:     sinAz,
		cosAz:     cosAz,
		style:     style,
		radius:    opts.Radius,
		minRadius: opts.MinRadius,
		steps:     opts.PrecisionAltitude,
		bisect:    opts.Bisect,
	}

	pad := mesh.Cell * 1e-6
	for _, cand := range ix.Candidates(origin.X, origin.Y, sinAz, cosAz, opts.Radius) {
		run := patchRun{sIn: cand.SIn, sOut: cand.SOut, zMax: cand.Patch.ZMax}
		from := math.Max(cand.SIn-pad, 0)
		to := cand.SOut + pad
		mesh.WalkCells(
			origin.X+from*sinAz, origin.Y+from*cosAz,
			origin.X+to*sinAz, origin.Y+to*cosAz,
			func(i, j int, s float64) bool {
				if mesh.PatchOf(i, j) == cand.Patch.ID {
					run.cells = append(run.cells, cellRef{i: i, j: j, s: from + s})
				}
				return true
			})
		if len(run.cells) > 0 {
			col.runs = append(col.runs, run)
		}
	}
	return col
}

// direction returns the dome offset for altitude step j, its horizontal
// length and the slope of the ray.
func (c *column) direction(j int) (r3.Vec, float64, float64) {
	alt := (math.Pi / 2) * float64(j) / float64(c.steps)
	sinAlt, cosAlt := math.Sincos(alt)
	if c.style == model.StyleExtruded {
		tanAlt := sinAlt / cosAlt
		return r3.Vec{X: c.radius * c.sinAz, Y: c.radius * c.cosAz, Z: c.radius * tanAlt}, c.radius, tanAlt
	}
	horiz := c.radius * cosAlt
	return r3.Vec{X: horiz * c.sinAz, Y: horiz * c.cosAz, Z: c.radius * sinAlt}, horiz, sinAlt / cosAlt
}

func (c *column) blocked(j int) bool {
	d, horiz, tanAlt := c.direction(j)
	ray := Ray{Origin: c.origin, Dir: d}
	for _, run := range c.runs {
		if run.sIn > horiz {
			break
		}
		if run.sOut < c.minRadius {
			continue
		}
		if c.origin.Z+run.sIn*tanAlt > run.zMax {
			continue
		}
		for _, cell := range run.cells {
			if cell.s > horiz {
				break
			}
			for _, tri := range c.mesh.CellTriangles(cell.i, cell.j) {
				t, ok := IntersectTriangle(ray, tri[0], tri[1], tri[2])
				if ok && t*horiz >= c.minRadius {
					return true
				}
			}
		}
	}
	return false
}

// scan finds the highest blocked altitude step. Terrain is a height field, so
// without a min radius the blocked steps of a column form a prefix and the
// linear scan stops at the first open step. Hits inside the min radius are
// ignored, which can open low steps below blocked ones: the column is then
// ascended in full.
func (c *column) scan(view r3.Vec) RawHit {
	last := -1
	switch {
	case c.minRadius > 0:
		for j := 0; j < c.steps; j++ {
			if c.blocked(j) {
				last = j
			}
		}
	case c.bisect:
		if c.blocked(0) {
			lo, hi := 0, c.steps
			for hi-lo > 1 {
				mid := (lo + hi) / 2
				if c.blocked(mid) {
					lo = mid
				} else {
					hi = mid
				}
			}
			last = lo
		}
	default:
		for j := 0; j < c.steps; j++ {
			if !c.blocked(j) {
				break
			}
			last = j
		}
	}

	if last < 0 {
		d, _, _ := c.direction(0)
		return RawHit{AzimuthDeg: c.az, Point: r3.Add(view, d)}
	}
	d, _, _ := c.direction(last)
	return RawHit{AzimuthDeg: c.az, Point: r3.Add(view, d), Blocked: true, AltitudeStep: last}
}
