package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"horizonmask/pkg/core"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/model"
)

// Runner runs the horizon pipeline.
type Runner interface {
	Run(ctx context.Context, req core.Request) (*core.Result, error)
}

// HorizonHandler computes (or serves cached) horizons for a location.
type HorizonHandler struct {
	runner   Runner
	defaults core.Request
}

// NewHorizonHandler creates a handler. Query parameters override defaults.
func NewHorizonHandler(r Runner, defaults core.Request) *HorizonHandler {
	return &HorizonHandler{runner: r, defaults: defaults}
}

// HorizonResponse is the JSON body of GET /api/horizon.
type HorizonResponse struct {
	RunID      string                 `json:"run_id"`
	Stem       string                 `json:"stem"`
	Location   model.Location         `json:"location"`
	RadiusKM   float64                `json:"radius_km"`
	Clamped    bool                   `json:"clamped"`
	Suggestion string                 `json:"suggestion,omitempty"`
	NoShading  bool                   `json:"no_shading"`
	Source     string                 `json:"source"`
	MaxAngle   float64                `json:"max_angle"`
	MaxAzimuth float64                `json:"max_azimuth"`
	Horizon    []horizon.DegreeSample `json:"horizon"`
	FitRadius  float64                `json:"fit_radius,omitempty"`
	SunHours   *float64               `json:"sun_hours,omitempty"`
	Artifacts  core.Artifacts         `json:"artifacts"`
	DurationMS int64                  `json:"duration_ms"`
}

type errorResponse struct {
	Error      string  `json:"error"`
	Field      string  `json:"field,omitempty"`
	MaxKM      float64 `json:"max_km,omitempty"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// sunStep is the sampling step of the daily sun hours.
const sunStep = 5 * time.Minute

// ServeHTTP handles GET /api/horizon?lat=&lon=&name=&style=&min_radius=&max_radius=&north_offset=&date=
// Radii are in kilometers. date (YYYY-MM-DD) adds the hours of direct sun on
// that UTC day.
func (h *HorizonHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var day time.Time
	if s := r.URL.Query().Get("date"); s != "" {
		if day, err = time.Parse(time.DateOnly, s); err != nil {
			writeError(w, &model.ValidationError{Field: "date", Value: s, Reason: "want YYYY-MM-DD"})
			return
		}
	}

	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		slog.Warn("Horizon request failed", "lat", req.Location.Lat, "lon", req.Location.Lon, "error", err)
		writeError(w, err)
		return
	}

	resp := HorizonResponse{
		RunID:      res.RunID,
		Stem:       res.Key.Stem(),
		Location:   res.Header.Location,
		RadiusKM:   res.RadiusM / 1000,
		NoShading:  res.NoShading,
		Source:     res.Source,
		MaxAngle:   res.Profile.MaxAngle,
		MaxAzimuth: res.Profile.MaxAzimuth,
		Horizon:    res.Profile.Degrees(),
		Artifacts:  res.Artifacts,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.DomainLimit != nil {
		resp.Clamped = true
		resp.Suggestion = res.DomainLimit.Suggestion
	}
	if res.Fit != nil {
		resp.FitRadius = res.Fit.Radius
	}
	if !day.IsZero() {
		hours := horizon.SunHours(res.Profile, day, req.Location.Lat, req.Location.Lon, sunStep).Hours()
		resp.SunHours = &hours
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *HorizonHandler) parseQuery(r *http.Request) (core.Request, error) {
	q := r.URL.Query()
	req := h.defaults
	req.Context = nil

	parse := func(key string, dst *float64, scale float64) error {
		s := q.Get(key)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return &model.ValidationError{Field: key, Value: s, Reason: "not a number"}
		}
		*dst = v * scale
		return nil
	}

	if q.Get("lat") == "" || q.Get("lon") == "" {
		return req, &model.ValidationError{Field: "lat/lon", Value: r.URL.RawQuery, Reason: "lat and lon are required"}
	}
	// A new site has no configured elevation.
	req.Location = model.Location{Name: q.Get("name")}
	for _, p := range []struct {
		key   string
		dst   *float64
		scale float64
	}{
		{"lat", &req.Location.Lat, 1},
		{"lon", &req.Location.Lon, 1},
		{"elevation", &req.Location.Elevation, 1},
		{"min_radius", &req.MinRadiusM, 1000},
		{"max_radius", &req.MaxRadiusM, 1000},
		{"north_offset", &req.NorthOffset, 1},
	} {
		if err := parse(p.key, p.dst, p.scale); err != nil {
			return req, err
		}
	}

	if s := q.Get("style"); s != "" {
		style, err := model.ParseStyle(s)
		if err != nil {
			return req, err
		}
		req.Style = style
	}
	return req, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{Error: err.Error()}

	var ve *model.ValidationError
	var dl *model.DomainLimitError
	var ne *model.NetworkError
	var ge *model.GeometryError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body.Field = ve.Field
	case errors.As(err, &dl):
		status = http.StatusUnprocessableEntity
		body.MaxKM = dl.MaxM / 1000
		body.Suggestion = dl.Suggestion
	case errors.As(err, &ne):
		status = http.StatusBadGateway
	case errors.As(err, &ge):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away
		status = 499
		body.Error = fmt.Sprintf("request cancelled: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
