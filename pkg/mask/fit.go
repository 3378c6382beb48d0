package mask

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/logging"
	"horizonmask/pkg/model"
)

// FitOptions controls the scale search.
type FitOptions struct {
	StepRatio           float64 // growth per step, relative to the start radius
	Tolerance           float64 // max exposure spread between corners
	StableSteps         int     // consecutive steps under tolerance
	MaxIterations       int
	SafetyFactor        float64
	MinRadius           float64 // floor of the final radius
	MaxCentroidDistance float64
	SamplesAzimuth      int
	SamplesAltitude     int
	Workers             int
}

// DefaultFitOptions matches the default configuration.
var DefaultFitOptions = FitOptions{
	StepRatio:           0.5,
	Tolerance:           0.01,
	StableSteps:         2,
	MaxIterations:       40,
	SafetyFactor:        3,
	MinRadius:           10000,
	MaxCentroidDistance: 100000,
	SamplesAzimuth:      72,
	SamplesAltitude:     18,
}

// FitResult is the outcome of a scale search.
type FitResult struct {
	Mask            *ShadingMask // scaled and centered on the context
	Scale           float64
	Radius          float64 // final radius
	ConvergedRadius float64
	Converged       bool
	Iterations      int
	Spreads         []float64 // exposure spread per iteration
	Exposures       []float64 // per corner at the converged radius
	Centroid        orb.Point
	Latitude        float64
}

// Fitter sizes masks for a context footprint.
type Fitter struct {
	opts   FitOptions
	logger *slog.Logger
}

// NewFitter creates a fitter. Zero option fields take the defaults.
func NewFitter(opts FitOptions, logger *slog.Logger) *Fitter {
	d := DefaultFitOptions
	if opts.StepRatio <= 0 {
		opts.StepRatio = d.StepRatio
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = d.Tolerance
	}
	if opts.StableSteps < 1 {
		opts.StableSteps = d.StableSteps
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = d.MaxIterations
	}
	if opts.SafetyFactor < 1 {
		opts.SafetyFactor = d.SafetyFactor
	}
	if opts.MaxCentroidDistance <= 0 {
		opts.MaxCentroidDistance = d.MaxCentroidDistance
	}
	if opts.SamplesAzimuth < 1 {
		opts.SamplesAzimuth = d.SamplesAzimuth
	}
	if opts.SamplesAltitude < 1 {
		opts.SamplesAltitude = d.SamplesAltitude
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{opts: opts, logger: logger}
}

// Fit grows the mask radius from the context's bounding diagonal until the
// sky exposure of all corners agrees within tolerance, then applies the
// safety factor and the minimum radius. The canonical mask m is not
// modified. latitude is recorded for auditing only.
func (f *Fitter) Fit(ctx context.Context, m *ShadingMask, corners []orb.Point, latitude float64) (FitResult, error) {
	if m == nil {
		return FitResult{}, model.ErrNoShading
	}
	if len(corners) == 0 {
		return FitResult{}, &model.ValidationError{Field: "context", Value: 0, Reason: "needs at least one corner"}
	}

	centroid, bound := footprint(corners)
	if d := math.Hypot(centroid[0], centroid[1]); d > f.opts.MaxCentroidDistance {
		return FitResult{}, &model.ValidationError{
			Field:  "context",
			Value:  fmt.Sprintf("centroid %.0f m from origin", d),
			Reason: fmt.Sprintf("re-center the context within %.0f m of the origin", f.opts.MaxCentroidDistance),
			Err:    model.ErrContextTooFar,
		}
	}

	r0 := math.Hypot(bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1])
	if r0 == 0 {
		r0 = 1
	}
	step := f.opts.StepRatio * r0
	center := r3.Vec{X: centroid[0], Y: centroid[1]}

	res := FitResult{Centroid: centroid, Latitude: latitude}
	stable := 0
	r := r0
	for it := 0; it < f.opts.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return FitResult{}, err
		}
		r = r0 + float64(it)*step
		placed := m.Scaled(r / m.Radius).Translated(center)

		exp, err := f.exposures(ctx, placed, corners)
		if err != nil {
			return FitResult{}, err
		}
		spread := spreadOf(exp)
		res.Iterations = it + 1
		res.Spreads = append(res.Spreads, spread)
		res.Exposures = exp
		logging.Trace(f.logger, "fit step", "iteration", it, "radius", r, "spread", spread)

		if spread < f.opts.Tolerance {
			stable++
		} else {
			stable = 0
		}
		if stable >= f.opts.StableSteps {
			res.Converged = true
			break
		}
	}

	res.ConvergedRadius = r
	res.Radius = math.Max(f.opts.SafetyFactor*r, f.opts.MinRadius)
	res.Scale = res.Radius / m.Radius
	res.Mask = m.Scaled(res.Scale).Translated(center)

	if !res.Converged {
		f.logger.Warn("Mask scale search did not converge", "iterations", res.Iterations, "radius", r)
	}
	f.logger.Info("Mask scale fitted",
		"corners", len(corners),
		"converged_radius", r,
		"radius", res.Radius,
		"scale", res.Scale,
		"iterations", res.Iterations,
		"lat", latitude)
	return res, nil
}

func (f *Fitter) exposures(ctx context.Context, m *ShadingMask, corners []orb.Point) ([]float64, error) {
	out := make([]float64, len(corners))
	g, gctx := errgroup.WithContext(ctx)
	if f.opts.Workers > 0 {
		g.SetLimit(f.opts.Workers)
	}
	for i, c := range corners {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := r3.Vec{X: c[0], Y: c[1]}
			out[i] = SkyExposure(p, m.Surface, f.opts.SamplesAzimuth, f.opts.SamplesAltitude)
			return nil
		})
	}
	return out, g.Wait()
}

// footprint returns the area centroid of the corner ring (the point
// centroid for degenerate rings) and the bounds.
func footprint(corners []orb.Point) (orb.Point, orb.Bound) {
	mp := orb.MultiPoint(corners)
	bound := mp.Bound()
	if len(corners) >= 3 {
		ring := append(orb.Ring(nil), corners...)
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		if c, area := planar.CentroidArea(orb.Polygon{ring}); area != 0 {
			return c, bound
		}
	}
	c, _ := planar.CentroidArea(mp)
	return c, bound
}

func spreadOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return hi - lo
}
