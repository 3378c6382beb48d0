package core

import (
	"math"

	"github.com/paulmach/orb"

	"horizonmask/pkg/config"
	"horizonmask/pkg/model"
)

// Request is one horizon computation. Context corners are local meters
// around the location (x east, y north); without them the mask is only
// rotated, not fitted.
type Request struct {
	Location    model.Location
	MinRadiusM  float64
	MaxRadiusM  float64
	Style       model.Style
	NorthOffset float64 // degrees clockwise from scene +Y to true north
	Context     []orb.Point
}

// RequestFromConfig builds the request described by the location, visibility
// and view sections of cfg.
func RequestFromConfig(cfg *config.Config) (Request, error) {
	style, err := model.ParseStyle(cfg.Mask.Style)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Location: model.Location{
			Name:      cfg.Location.Name,
			Lat:       cfg.Location.Lat,
			Lon:       cfg.Location.Lon,
			Elevation: cfg.Location.Elevation,
		},
		MinRadiusM:  cfg.Visibility.MinRadius.Meters(),
		MaxRadiusM:  cfg.Visibility.MaxRadius.Meters(),
		Style:       style,
		NorthOffset: cfg.View.NorthOffset.Degrees(),
	}, nil
}

// Validate checks the request bounds before any work starts.
func (r Request) Validate() error {
	bad := func(field string, value any, reason string) error {
		return &model.ValidationError{Field: field, Value: value, Reason: reason}
	}

	loc := r.Location
	if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return bad("lat", loc.Lat, "must be within [-90, 90]")
	}
	if math.IsNaN(loc.Lon) || loc.Lon < -180 || loc.Lon > 180 {
		return bad("lon", loc.Lon, "must be within [-180, 180]")
	}
	if math.IsNaN(r.MinRadiusM) || r.MinRadiusM < 0 || r.MinRadiusM > config.MaxMinRadius.Meters() {
		return bad("min_radius", r.MinRadiusM/1000, "must be within [0, 10] km")
	}
	if math.IsNaN(r.MaxRadiusM) || r.MaxRadiusM <= 0 || r.MaxRadiusM > config.MaxMaxRadius.Meters() {
		return bad("max_radius", r.MaxRadiusM/1000, "must be within (0, 100] km")
	}
	if r.MinRadiusM > r.MaxRadiusM/3 {
		return bad("min_radius", r.MinRadiusM/1000, "must not exceed a third of max_radius")
	}
	if _, err := model.ParseStyle(string(r.Style)); err != nil {
		return err
	}
	if math.IsNaN(r.NorthOffset) || math.IsInf(r.NorthOffset, 0) {
		return bad("north_offset", r.NorthOffset, "must be finite")
	}
	for _, c := range r.Context {
		if math.IsNaN(c[0]+c[1]) || math.IsInf(c[0]+c[1], 0) {
			return bad("context", c, "corners must be finite")
		}
	}
	return nil
}
