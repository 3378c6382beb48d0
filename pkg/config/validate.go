package config

import (
	"slices"

	"horizonmask/pkg/model"
)

const (
	// MaxMinRadius is the largest accepted inner visibility radius.
	MaxMinRadius = Distance(10000)
	// MaxMaxRadius is the largest accepted outer visibility radius; the
	// curvature and refraction correction is not valid beyond it.
	MaxMaxRadius = Distance(100000)
)

// HorizonFormats lists the accepted export.horizon_format values.
var HorizonFormats = []string{"plain", "short", "single-line", "restricted"}

// Validate checks the configuration bounds. The first violation is returned
// as a *model.ValidationError.
func (c *Config) Validate() error {
	bad := func(field string, value any, reason string) error {
		return &model.ValidationError{Field: field, Value: value, Reason: reason}
	}

	if c.Location.Lat < -90 || c.Location.Lat > 90 {
		return bad("location.lat", c.Location.Lat, "must be within [-90, 90]")
	}
	if c.Location.Lon < -180 || c.Location.Lon > 180 {
		return bad("location.lon", c.Location.Lon, "must be within [-180, 180]")
	}

	v := c.Visibility
	if v.MinRadius < 0 || v.MinRadius > MaxMinRadius {
		return bad("visibility.min_radius", v.MinRadius.Km(), "must be within [0, 10] km")
	}
	if v.MaxRadius <= 0 || v.MaxRadius > MaxMaxRadius {
		return bad("visibility.max_radius", v.MaxRadius.Km(), "must be within (0, 100] km")
	}
	if v.MinRadius > v.MaxRadius/3 {
		return bad("visibility.min_radius", v.MinRadius.Km(), "must not exceed a third of max_radius")
	}
	if v.ClampMargin < 0 {
		return bad("visibility.clamp_margin", float64(v.ClampMargin), "must not be negative")
	}

	if c.View.Height < 0 {
		return bad("view.height", float64(c.View.Height), "must not be negative")
	}

	if _, err := model.ParseStyle(c.Mask.Style); err != nil {
		return err
	}
	if c.Mask.Radius <= 0 {
		return bad("mask.radius", c.Mask.Radius, "must be positive")
	}
	if c.Mask.Columns < 3 {
		return bad("mask.columns", c.Mask.Columns, "must be at least 3")
	}
	if c.Mask.Rings < 1 {
		return bad("mask.rings", c.Mask.Rings, "must be at least 1")
	}

	if c.Scan.PrecisionAzimuth <= 0 {
		return bad("scan.precision_azimuth", c.Scan.PrecisionAzimuth, "must be positive")
	}
	if c.Scan.PrecisionAltitude <= 0 {
		return bad("scan.precision_altitude", c.Scan.PrecisionAltitude, "must be positive")
	}
	if c.Scan.Workers < 0 {
		return bad("scan.workers", c.Scan.Workers, "must not be negative")
	}

	t := c.Terrain
	if t.CoverageSouth >= t.CoverageNorth || t.CoverageSouth < -90 || t.CoverageNorth > 90 {
		return bad("terrain.coverage", [2]float64{t.CoverageSouth, t.CoverageNorth}, "must be an increasing latitude pair within [-90, 90]")
	}
	if t.CellSize <= 0 {
		return bad("terrain.cell_size", float64(t.CellSize), "must be positive")
	}
	if t.MaxGridSide < 3 {
		return bad("terrain.max_grid_side", t.MaxGridSide, "must be at least 3")
	}
	if t.PatchCells < 1 {
		return bad("terrain.patch_cells", t.PatchCells, "must be at least 1")
	}

	f := c.Fit
	if f.StepRatio <= 0 {
		return bad("fit.step_ratio", f.StepRatio, "must be positive")
	}
	if f.Tolerance <= 0 || f.Tolerance >= 1 {
		return bad("fit.tolerance", f.Tolerance, "must be within (0, 1)")
	}
	if f.StableSteps < 1 {
		return bad("fit.stable_steps", f.StableSteps, "must be at least 1")
	}
	if f.SafetyFactor < 1 {
		return bad("fit.safety_factor", f.SafetyFactor, "must be at least 1")
	}
	if f.SamplesAzimuth < 4 || f.SamplesAltitude < 2 {
		return bad("fit.samples", [2]int{f.SamplesAzimuth, f.SamplesAltitude}, "need at least 4 azimuth and 2 altitude samples")
	}

	if c.Request.Retries < 0 {
		return bad("request.retries", c.Request.Retries, "must not be negative")
	}
	if b := c.Request.Backoff; b.Jitter < 0 || b.Jitter > 1 {
		return bad("request.backoff.jitter", b.Jitter, "must be within [0, 1]")
	}
	if c.Request.Backoff.Recovery < 0 {
		return bad("request.backoff.recovery", c.Request.Backoff.Recovery, "must not be negative")
	}

	if !slices.Contains(HorizonFormats, c.Export.HorizonFormat) {
		return bad("export.horizon_format", c.Export.HorizonFormat, "unknown format")
	}

	if c.Cache.H3Resolution < 0 || c.Cache.H3Resolution > 15 {
		return bad("cache.h3_resolution", c.Cache.H3Resolution, "must be within [0, 15]")
	}
	return nil
}
