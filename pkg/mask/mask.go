// Package mask turns a horizon profile into a 3-D shading mask and sizes it
// for a surrounding context.
package mask

import (
	"fmt"
	"math"

	"github.com/brunoga/deep"
	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/geom"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/logging"
	"horizonmask/pkg/model"
	"horizonmask/pkg/raycast"
)

// maxWallAngle caps extruded wall heights; tan(90) has no wall.
const maxWallAngle = 89.0

// Options controls mask synthesis.
type Options struct {
	Style   model.Style
	Radius  float64 // object-space radius of the unscaled mask
	Columns int     // azimuth columns of the mask surface
	Rings   int     // rows between the base and the silhouette
	WeldEps float64
}

// DefaultOptions matches the default configuration.
var DefaultOptions = Options{Style: model.StyleSpherical, Radius: 200, Columns: 360, Rings: 8, WeldEps: 1e-6}

// ShadingMask is a synthesized mask in object space. Its transform methods
// return new masks and never modify the receiver.
type ShadingMask struct {
	Style      model.Style
	Radius     float64
	Surface    geom.Mesh
	Silhouette geom.Polyline
	Origin     geom.RefPoint
}

// Synthesize reduces raw scan hits around view and builds the mask. It
// returns model.ErrNoShading when no column is blocked.
func Synthesize(raw []raycast.RawHit, view r3.Vec, opts Options) (*ShadingMask, error) {
	if len(raw) == 0 {
		return nil, model.ErrEmptyProfile
	}
	p, err := horizon.Reduce(raw, view)
	if err != nil {
		return nil, &model.GeometryError{Stage: "synthesize", Err: err}
	}
	return FromProfile(p, opts)
}

// FromProfile builds the mask for an already reduced profile.
func FromProfile(p horizon.Profile, opts Options) (*ShadingMask, error) {
	if len(p.Samples) == 0 {
		return nil, model.ErrEmptyProfile
	}
	if !p.Shaded() {
		return nil, model.ErrNoShading
	}
	style, err := model.ParseStyle(string(opts.Style))
	if err != nil {
		return nil, err
	}
	if opts.Radius <= 0 || opts.Columns < 3 || opts.Rings < 1 {
		return nil, &model.GeometryError{Stage: "synthesize", Err: fmt.Errorf("radius %.1f, %d columns, %d rings", opts.Radius, opts.Columns, opts.Rings)}
	}

	angles := resample(p, opts.Columns)
	rows := opts.Rings + 1
	surf := geom.Surface{Rows: rows, Cols: opts.Columns, Points: make([]r3.Vec, rows*opts.Columns), ClosedU: true}
	sil := geom.Polyline{Points: make([]r3.Vec, opts.Columns), Closed: true}

	for c, theta := range angles {
		az := 2 * math.Pi * float64(c) / float64(opts.Columns)
		sinAz, cosAz := math.Sincos(az)
		for k := 0; k < rows; k++ {
			f := float64(k) / float64(opts.Rings)
			var pt r3.Vec
			if style == model.StyleExtruded {
				h := opts.Radius * math.Tan(math.Min(theta, maxWallAngle)*math.Pi/180)
				pt = r3.Vec{X: opts.Radius * sinAz, Y: opts.Radius * cosAz, Z: f * h}
			} else {
				sinAlt, cosAlt := math.Sincos(f * theta * math.Pi / 180)
				pt = r3.Vec{X: opts.Radius * cosAlt * sinAz, Y: opts.Radius * cosAlt * cosAz, Z: opts.Radius * sinAlt}
			}
			surf.Points[k*opts.Columns+c] = pt
		}
		sil.Points[c] = surf.Points[opts.Rings*opts.Columns+c]
	}

	mesh, ws := surf.Tessellate().Weld(opts.WeldEps)
	logging.TraceDefault("mask welded", "style", style, "merged_vertices", ws.MergedVertices,
		"degenerate_faces", ws.DegenerateFaces, "duplicate_faces", ws.DuplicateFaces)
	if len(mesh.Faces) == 0 {
		return nil, &model.GeometryError{Stage: "synthesize", Err: fmt.Errorf("mask surface has no faces")}
	}

	return &ShadingMask{
		Style:      style,
		Radius:     opts.Radius,
		Surface:    mesh,
		Silhouette: sil,
		Origin:     geom.RefPoint{Name: "origin"},
	}, nil
}

// resample returns one blocking angle per mask column: the highest sample
// within half a column, or the interpolated profile where none falls.
func resample(p horizon.Profile, columns int) []float64 {
	width := 360 / float64(columns)
	out := make([]float64, columns)
	have := make([]bool, columns)
	for _, s := range p.Samples {
		c := int(math.Floor(s.AzimuthDeg/width+0.5)) % columns
		if !have[c] || s.AngleDeg > out[c] {
			out[c] = s.AngleDeg
			have[c] = true
		}
	}
	for c := range out {
		if !have[c] {
			out[c] = p.AngleAt(float64(c) * width)
		}
		out[c] = math.Max(out[c], 0)
	}
	return out
}

// Clone returns a deep copy.
func (m *ShadingMask) Clone() *ShadingMask {
	c := deep.MustCopy(*m)
	return &c
}

// Transformed applies a to every part of a copy of the mask.
func (m *ShadingMask) Transformed(a geom.Affine) *ShadingMask {
	c := m.Clone()
	c.Surface = c.Surface.Transformed(a)
	c.Silhouette = c.Silhouette.Transform(a).(geom.Polyline)
	c.Origin = c.Origin.Transform(a).(geom.RefPoint)
	return c
}

// Scaled scales the mask about its origin.
func (m *ShadingMask) Scaled(f float64) *ShadingMask {
	c := m.Transformed(geom.Scale(f, m.Origin.P))
	c.Radius = m.Radius * f
	return c
}

// Translated moves the mask by v.
func (m *ShadingMask) Translated(v r3.Vec) *ShadingMask {
	return m.Transformed(geom.Translate(v))
}

// Rotated turns the mask clockwise about its origin by deg.
func (m *ShadingMask) Rotated(deg float64) *ShadingMask {
	return m.Transformed(geom.RotateZ(deg, m.Origin.P))
}

// Angles recovers the blocking angle of every silhouette column as seen from
// the mask origin. Rotations show up as shifted azimuths.
func (m *ShadingMask) Angles() []horizon.Sample {
	out := make([]horizon.Sample, len(m.Silhouette.Points))
	for i, p := range m.Silhouette.Points {
		d := r3.Sub(p, m.Origin.P)
		az := math.Atan2(d.X, d.Y) * 180 / math.Pi
		if az < 0 {
			az += 360
		}
		out[i] = horizon.Sample{
			AzimuthDeg: az,
			AngleDeg:   math.Atan2(d.Z, math.Hypot(d.X, d.Y)) * 180 / math.Pi,
			Blocked:    d.Z > 0,
			Hit:        p,
		}
	}
	return out
}
