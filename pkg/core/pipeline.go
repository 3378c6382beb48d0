// Package core runs the horizon pipeline: radius clamping, terrain meshing,
// the hemisphere scan, mask synthesis, caching and placement.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"horizonmask/pkg/cache"
	"horizonmask/pkg/config"
	"horizonmask/pkg/geo"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/mask"
	"horizonmask/pkg/model"
	"horizonmask/pkg/raycast"
	"horizonmask/pkg/terrain"
	"horizonmask/pkg/tracker"
)

// Deps are the collaborators of a Pipeline. Cache and Caster are optional.
type Deps struct {
	Config *config.Config
	Source terrain.Source
	Cache  *cache.Cache
	Caster *raycast.Caster
	Logger *slog.Logger
}

// Result is the outcome of one run. Mask is the canonical mask (nil when
// NoShading); Placed is the mask rotated to the scene and, with a context,
// fitted to it.
type Result struct {
	RunID       string
	Key         cache.Key
	Header      model.ArtifactHeader
	RadiusM     float64
	DomainLimit *model.DomainLimitError // set when the radius was clamped
	Profile     horizon.Profile
	Mask        *mask.ShadingMask
	Placed      *mask.ShadingMask
	Fit         *mask.FitResult
	NoShading   bool
	Source      string
	Artifacts   Artifacts
	Duration    time.Duration
}

// Pipeline computes shading masks. A Pipeline holds no per-run state and may
// serve concurrent runs.
type Pipeline struct {
	cfg    *config.Config
	source terrain.Source
	cache  *cache.Cache
	caster *raycast.Caster
	fitter *mask.Fitter
	format horizon.Format
	logger *slog.Logger
}

// New creates a pipeline.
func New(d Deps) (*Pipeline, error) {
	if d.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if d.Source == nil {
		return nil, errors.New("pipeline: elevation source is required")
	}
	format, err := horizon.ParseFormat(d.Config.Export.HorizonFormat)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	caster := d.Caster
	if caster == nil {
		caster = raycast.NewCaster(logger)
	}
	return &Pipeline{
		cfg:    d.Config,
		source: d.Source,
		cache:  d.Cache,
		caster: caster,
		fitter: mask.NewFitter(fitOptions(d.Config), logger),
		format: format,
		logger: logger,
	}, nil
}

func fitOptions(cfg *config.Config) mask.FitOptions {
	f := cfg.Fit
	return mask.FitOptions{
		StepRatio:           f.StepRatio,
		Tolerance:           f.Tolerance,
		StableSteps:         f.StableSteps,
		MaxIterations:       f.MaxIterations,
		SafetyFactor:        f.SafetyFactor,
		MinRadius:           f.MinRadius.Meters(),
		MaxCentroidDistance: f.MaxCentroidDistance.Meters(),
		SamplesAzimuth:      f.SamplesAzimuth,
		SamplesAltitude:     f.SamplesAltitude,
		Workers:             cfg.Scan.Workers,
	}
}

// Run executes the pipeline for req. A terrain without any blocking column is
// not an error: the result then has NoShading set and no mask.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With("run", res.RunID)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	style, _ := model.ParseStyle(string(req.Style))
	loc := req.Location
	site := geo.Point{Lat: loc.Lat, Lon: loc.Lon}

	radius, limit, err := p.clamp(log, req, site)
	if err != nil {
		return nil, err
	}
	res.RadiusM = radius
	res.DomainLimit = limit
	res.Key = cache.NewKey(loc.Name, loc.Lat, loc.Lon, req.MinRadiusM/1000, radius/1000, style)

	log.Info("Horizon run started",
		"location", loc.String(),
		"min_radius_km", req.MinRadiusM/1000,
		"radius_km", radius/1000,
		"style", style)

	frame, err := geo.NewLocalFrame(site)
	if err != nil {
		return nil, &model.GeometryError{Stage: "projection", Err: err}
	}

	var entry *cache.Entry
	if p.cache != nil {
		e, ok, err := p.cache.Lookup(ctx, res.Key)
		if err != nil {
			return nil, err
		}
		if ok {
			entry = e
		}
	}

	if entry != nil {
		res.Header = entry.Header
		res.Mask = entry.Mask
		res.Source = entry.Source
		// Stored profiles keep angles only; the exports need points.
		view := r3.Vec{Z: entry.Header.Location.Elevation}
		res.Profile = entry.Profile.WithDomeHits(view, radius)
		log.Info("Mask served from cache", "source", entry.Source, "obj", entry.OBJPath)
	} else if err := p.compute(ctx, log, req, style, frame, res); err != nil {
		return nil, err
	}

	if res.Mask != nil {
		if err := p.place(ctx, log, req, res); err != nil {
			return nil, err
		}
	}

	arts, err := p.export(log, res, frame)
	if err != nil {
		return nil, err
	}
	res.Artifacts = arts
	res.Duration = time.Since(start)

	log.Info("Horizon run finished",
		"source", res.Source,
		"no_shading", res.NoShading,
		"max_angle", res.Profile.MaxAngle,
		"max_azimuth", res.Profile.MaxAzimuth,
		"duration", res.Duration)
	return res, nil
}

// clamp limits the outer radius to the elevation coverage. With auto clamp
// the run proceeds on the clamped radius and the limit is reported alongside,
// unless the clamped radius no longer holds min_radius <= max_radius/3.
func (p *Pipeline) clamp(log *slog.Logger, req Request, site geo.Point) (float64, *model.DomainLimitError, error) {
	vis := p.cfg.Visibility
	c, err := geo.ClampRadius(site, req.MaxRadiusM, p.source.Band(), vis.ClampMargin.Meters())
	if err == nil {
		return c.RadiusM, nil, nil
	}
	var limit *model.DomainLimitError
	if !errors.As(err, &limit) || !vis.AutoClamp || !c.Clamped {
		return 0, nil, err
	}
	if req.MinRadiusM > c.RadiusM/3 {
		limit.Suggestion = fmt.Sprintf("min_radius %.0fm exceeds a third of the clamped radius %.0fm; lower min_radius to %.0fm or move the site away from the coverage edge",
			req.MinRadiusM, c.RadiusM, math.Floor(c.RadiusM/3))
		return 0, nil, limit
	}
	log.Warn("Visibility radius clamped to elevation coverage",
		"requested_km", req.MaxRadiusM/1000,
		"radius_km", c.RadiusM/1000,
		"band", p.source.Band().String())
	return c.RadiusM, limit, nil
}

// compute builds the terrain mesh, scans it and synthesizes the mask. The
// mask is cached unless the scan found no shading.
func (p *Pipeline) compute(ctx context.Context, log *slog.Logger, req Request, style model.Style, frame *geo.LocalFrame, res *Result) error {
	cfg := p.cfg
	radius := res.RadiusM
	cell := cfg.Terrain.CellSize.Meters()
	site := geo.Point{Lat: req.Location.Lat, Lon: req.Location.Lon}

	grid, err := p.source.FetchGrid(ctx, geo.BoundAround(site, radius, 2*cell))
	if err != nil {
		return fmt.Errorf("fetch elevation: %w", err)
	}
	sampler := terrain.Corrected(terrain.NewSampler(frame, grid))
	mesh, err := terrain.BuildMesh(ctx, sampler, radius, cell, terrain.MeshOptions{
		MaxGridSide: cfg.Terrain.MaxGridSide,
		PatchCells:  cfg.Terrain.PatchCells,
	})
	if err != nil {
		return err
	}
	log.Debug("Terrain mesh built", "vertices_per_side", mesh.N, "cell_m", mesh.Cell, "triangles", mesh.TriangleCount())

	ground := req.Location.Elevation
	if ground == 0 {
		if ground, err = mesh.Height(0, 0); err != nil {
			return &model.GeometryError{Stage: "view", Err: err}
		}
	}
	view := r3.Vec{Z: ground + cfg.View.Height.Meters()}

	raw, err := p.scan(ctx, view, mesh, req, style)
	if err != nil {
		return err
	}

	if res.Profile, err = horizon.Reduce(raw, view); err != nil {
		return &model.GeometryError{Stage: "reduce", Err: err}
	}

	loc := req.Location
	loc.Elevation = view.Z
	res.Header = model.ArtifactHeader{
		Location:    loc,
		MinRadiusKM: req.MinRadiusM / 1000,
		MaxRadiusKM: radius / 1000,
		Style:       style,
		MaskRadius:  cfg.Mask.Radius,
		CreatedAt:   time.Now().UTC(),
	}
	res.Source = tracker.SourceComputed

	m, err := mask.Synthesize(raw, view, mask.Options{
		Style:   style,
		Radius:  cfg.Mask.Radius,
		Columns: cfg.Mask.Columns,
		Rings:   cfg.Mask.Rings,
		WeldEps: cfg.Mask.WeldEps,
	})
	if errors.Is(err, model.ErrNoShading) {
		res.NoShading = true
		log.Info("Terrain does not shade the view point", "max_angle", res.Profile.MaxAngle)
		return nil
	}
	if err != nil {
		return err
	}
	res.Mask = m

	if p.cache != nil {
		if _, err := p.cache.Store(ctx, res.Key, m, res.Profile, res.Header); err != nil {
			log.Error("Failed to cache mask", "stem", res.Key.Stem(), "error", err)
		}
	}
	return nil
}

// scan runs the hemisphere scan under the configured timeout.
func (p *Pipeline) scan(ctx context.Context, view r3.Vec, mesh *terrain.Mesh, req Request, style model.Style) ([]raycast.RawHit, error) {
	sc := p.cfg.Scan
	timeout := time.Duration(sc.Timeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := p.caster.CastHorizon(ctx, view, mesh, raycast.Options{
		PrecisionAzimuth:  sc.PrecisionAzimuth,
		PrecisionAltitude: sc.PrecisionAltitude,
		Radius:            mesh.Radius(),
		MinRadius:         req.MinRadiusM,
		Style:             style,
		Workers:           sc.Workers,
		Lift:              sc.Lift.Meters(),
		Bisect:            sc.Bisect,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("hemisphere scan exceeded %s: %w", timeout, err)
	}
	return raw, err
}

// place rotates the canonical mask into the scene and fits it to the context.
func (p *Pipeline) place(ctx context.Context, log *slog.Logger, req Request, res *Result) error {
	placed := res.Mask
	if off := req.NorthOffset; off != 0 {
		placed = placed.Rotated(off)
	}
	if len(req.Context) > 0 {
		fit, err := p.fitter.Fit(ctx, placed, req.Context, req.Location.Lat)
		if err != nil {
			return err
		}
		res.Fit = &fit
		placed = fit.Mask
		log.Debug("Mask fitted to context", "radius", fit.Radius, "converged", fit.Converged)
	}
	res.Placed = placed
	return nil
}
