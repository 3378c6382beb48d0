package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizonmask/pkg/cache"
	"horizonmask/pkg/core"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/model"
	"horizonmask/pkg/tracker"
)

type fakeRunner struct {
	got core.Request
	err error
}

func (f *fakeRunner) Run(ctx context.Context, req core.Request) (*core.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	loc := req.Location
	loc.Elevation = 1500
	return &core.Result{
		RunID:   "run-1",
		Key:     cache.NewKey(loc.Name, loc.Lat, loc.Lon, req.MinRadiusM/1000, req.MaxRadiusM/1000, req.Style),
		Header:  model.ArtifactHeader{Location: loc},
		RadiusM: req.MaxRadiusM,
		Profile: horizon.Profile{
			Samples: []horizon.Sample{
				{AzimuthDeg: 0, AngleDeg: 4, Blocked: true},
				{AzimuthDeg: 180, AngleDeg: 0},
			},
			MaxAngle: 4,
		},
		Source:   tracker.SourceComputed,
		Duration: 1500 * time.Millisecond,
	}, nil
}

func testDefaults() core.Request {
	return core.Request{
		Location:    model.Location{Name: "configured", Lat: 10, Lon: 10, Elevation: 999},
		MinRadiusM:  500,
		MaxRadiusM:  50000,
		Style:       model.StyleSpherical,
		NorthOffset: 15,
	}
}

func TestHorizonHandler_Success(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHorizonHandler(runner, testDefaults())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/horizon?lat=46.02&lon=7.749&name=Zermatt&style=extruded&max_radius=20", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "Zermatt", runner.got.Location.Name)
	assert.Equal(t, 0.0, runner.got.Location.Elevation, "configured elevation is not carried to a new site")
	assert.Equal(t, 20000.0, runner.got.MaxRadiusM)
	assert.Equal(t, 500.0, runner.got.MinRadiusM)
	assert.Equal(t, 15.0, runner.got.NorthOffset)
	assert.Equal(t, model.StyleExtruded, runner.got.Style)

	var resp HorizonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 20.0, resp.RadiusKM)
	assert.Equal(t, 4.0, resp.MaxAngle)
	assert.False(t, resp.Clamped)
	assert.Equal(t, int64(1500), resp.DurationMS)
	require.Len(t, resp.Horizon, 360)
	assert.Equal(t, 4, resp.Horizon[0].Angle)
	assert.Contains(t, resp.Stem, "Zermatt")
	assert.Nil(t, resp.SunHours)
}

func TestHorizonHandler_SunHours(t *testing.T) {
	h := NewHorizonHandler(&fakeRunner{}, testDefaults())

	get := func(query string) HorizonResponse {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/horizon?"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp HorizonResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.SunHours)
		return resp
	}

	// Far north in midsummer the sun never sets.
	summer := get("lat=69.65&lon=18.96&date=2026-06-21")
	assert.Greater(t, *summer.SunHours, 16.0)

	winter := get("lat=69.65&lon=18.96&date=2026-12-21")
	assert.Equal(t, 0.0, *winter.SunHours)
}

func TestHorizonHandler_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"missing lon", "lat=1", nil, http.StatusBadRequest},
		{"bad number", "lat=abc&lon=1", nil, http.StatusBadRequest},
		{"bad style", "lat=1&lon=1&style=cone", nil, http.StatusBadRequest},
		{"bad date", "lat=1&lon=1&date=21.06.2026", nil, http.StatusBadRequest},
		{"validation", "lat=1&lon=1", &model.ValidationError{Field: "lat", Reason: "bad"}, http.StatusBadRequest},
		{"domain limit", "lat=1&lon=1", &model.DomainLimitError{RequestedM: 100000, MaxM: 20000, Suggestion: "reduce"}, http.StatusUnprocessableEntity},
		{"network", "lat=1&lon=1", &model.NetworkError{URL: "http://x", Attempts: 2, Err: fmt.Errorf("503")}, http.StatusBadGateway},
		{"geometry", "lat=1&lon=1", &model.GeometryError{Stage: "mesh", Err: fmt.Errorf("empty")}, http.StatusUnprocessableEntity},
		{"timeout", "lat=1&lon=1", fmt.Errorf("scan: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", "lat=1&lon=1", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHorizonHandler(&fakeRunner{err: tt.err}, testDefaults())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/horizon?"+tt.query, nil))
			assert.Equal(t, tt.want, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHorizonHandler_DomainLimitBody(t *testing.T) {
	h := NewHorizonHandler(&fakeRunner{err: &model.DomainLimitError{RequestedM: 100000, MaxM: 20000, Suggestion: "reduce the radius"}}, testDefaults())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/horizon?lat=59&lon=10", nil))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 20.0, body.MaxKM)
	assert.Equal(t, "reduce the radius", body.Suggestion)
}
