package core

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizonmask/pkg/cache"
	"horizonmask/pkg/config"
	"horizonmask/pkg/db"
	"horizonmask/pkg/geo"
	"horizonmask/pkg/model"
	"horizonmask/pkg/store"
	"horizonmask/pkg/terrain"
	"horizonmask/pkg/tracker"
)

const (
	siteLat = 46.5
	siteLon = 7.5
)

// ridgeSource is a 500m plain around the site with an 800m ridge running
// east-west about 1.3-1.8 km north of it. flat drops the ridge.
func ridgeSource(t *testing.T, flat bool) *terrain.GridSource {
	t.Helper()
	g, err := terrain.NewGrid(46.62, 7.38, 0.002, 0.002, 121, 121)
	require.NoError(t, err)
	for r := 0; r < g.Rows; r++ {
		lat := g.North - float64(r)*g.DLat
		for c := 0; c < g.Cols; c++ {
			v := 500.0
			if !flat && lat >= 46.5119 && lat <= 46.5161 {
				v = 800
			}
			g.Set(r, c, v)
		}
	}
	return terrain.NewGridSource(g)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Visibility.ClampMargin = 0
	cfg.Mask.Columns = 72
	cfg.Mask.Rings = 4
	cfg.Scan.PrecisionAzimuth = 72
	cfg.Scan.PrecisionAltitude = 180
	cfg.Scan.Workers = 2
	cfg.Scan.Timeout = config.Duration(time.Minute)
	cfg.Terrain.CellSize = 50
	cfg.Fit.SamplesAzimuth = 24
	cfg.Fit.SamplesAltitude = 6
	cfg.Fit.MaxIterations = 10
	cfg.Export.Dir = t.TempDir()
	cfg.Export.KML = true
	cfg.Export.Chart = true
	cfg.Export.Shapefile = true
	return cfg
}

func testRequest() Request {
	return Request{
		Location:   model.Location{Name: "Ridge View", Lat: siteLat, Lon: siteLon},
		MinRadiusM: 0,
		MaxRadiusM: 3000,
		Style:      model.StyleSpherical,
	}
}

func newTestCache(t *testing.T, tr *tracker.Tracker) *cache.Cache {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "masks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	c, err := cache.New(store.NewSQLiteStore(d), nil, tr, cache.Options{
		Dir:          t.TempDir(),
		MemorySize:   8,
		MemoryTTL:    time.Hour,
		H3Resolution: 6,
	}, nil)
	require.NoError(t, err)
	return c
}

func newPipeline(t *testing.T, cfg *config.Config, src terrain.Source, c *cache.Cache) *Pipeline {
	t.Helper()
	p, err := New(Deps{Config: cfg, Source: src, Cache: c})
	require.NoError(t, err)
	return p
}

func TestRun_ComputesAndCaches(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	tr := tracker.New()
	p := newPipeline(t, cfg, ridgeSource(t, false), newTestCache(t, tr))

	res, err := p.Run(ctx, testRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, tracker.SourceComputed, res.Source)
	assert.False(t, res.NoShading)
	assert.Nil(t, res.DomainLimit)
	assert.Equal(t, 3000.0, res.RadiusM)
	require.NotNil(t, res.Mask)
	require.NotNil(t, res.Placed)
	assert.Nil(t, res.Fit)
	assert.InDelta(t, 501.5, res.Header.Location.Elevation, 1e-3)

	require.Len(t, res.Profile.Samples, 72)
	assert.True(t, res.Profile.Samples[0].Blocked, "ridge to the north")
	assert.False(t, res.Profile.Samples[18].Blocked, "open to the east")
	assert.False(t, res.Profile.Samples[36].Blocked, "open to the south")
	assert.Greater(t, res.Profile.MaxAngle, 8.0)
	assert.Less(t, res.Profile.MaxAngle, 16.0)
	assert.True(t, res.Profile.MaxAzimuth < 30 || res.Profile.MaxAzimuth > 330, "max at %v", res.Profile.MaxAzimuth)

	for _, path := range []string{res.Artifacts.Horizon, res.Artifacts.OBJ, res.Artifacts.KML, res.Artifacts.Chart, res.Artifacts.Shapefile} {
		require.NotEmpty(t, path)
		assert.FileExists(t, path)
	}

	again, err := p.Run(ctx, testRequest())
	require.NoError(t, err)
	assert.NotEqual(t, res.RunID, again.RunID)
	assert.Equal(t, tracker.SourceMemory, again.Source)
	assert.Equal(t, res.Key, again.Key)
	assert.Equal(t, res.Profile.MaxAngle, again.Profile.MaxAngle)
	require.Len(t, again.Profile.Samples, 72)
	assert.Equal(t, int64(1), tr.Snapshot()[tracker.SourceMemory].Hits)
}

func TestRun_NoShading(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	c := newTestCache(t, nil)
	p := newPipeline(t, cfg, ridgeSource(t, true), c)

	res, err := p.Run(ctx, testRequest())
	require.NoError(t, err)
	assert.True(t, res.NoShading)
	assert.Nil(t, res.Mask)
	assert.Nil(t, res.Placed)
	assert.Equal(t, 0.0, res.Profile.MaxAngle)
	assert.FileExists(t, res.Artifacts.Horizon)
	assert.Empty(t, res.Artifacts.OBJ)

	_, ok, err := c.Lookup(ctx, res.Key)
	require.NoError(t, err)
	assert.False(t, ok, "unshaded results are not cached")
}

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
		field  string
	}{
		{"latitude", func(r *Request) { r.Location.Lat = 95 }, "lat"},
		{"longitude", func(r *Request) { r.Location.Lon = -181 }, "lon"},
		{"max radius", func(r *Request) { r.MaxRadiusM = 150000 }, "max_radius"},
		{"min over a third", func(r *Request) { r.MinRadiusM = 1500 }, "min_radius"},
		{"style", func(r *Request) { r.Style = "conical" }, "style"},
		{"context", func(r *Request) { r.Context = []orb.Point{{math.NaN(), 0}} }, "context"},
	}

	p := newPipeline(t, testConfig(t), ridgeSource(t, false), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			_, err := p.Run(context.Background(), req)
			var ve *model.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRun_DomainLimit(t *testing.T) {
	// The band edge is about 2.2 km south of the site.
	src := ridgeSource(t, false)
	src.Coverage = geo.Band{South: 46.48, North: 90}

	t.Run("Rejected", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Visibility.AutoClamp = false
		_, err := newPipeline(t, cfg, src, nil).Run(context.Background(), testRequest())
		var dl *model.DomainLimitError
		require.True(t, errors.As(err, &dl), "got %v", err)
		assert.Greater(t, dl.MaxM, 2000.0)
		assert.Less(t, dl.MaxM, 2300.0)
	})

	t.Run("AutoClamp", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Visibility.AutoClamp = true
		res, err := newPipeline(t, cfg, src, nil).Run(context.Background(), testRequest())
		require.NoError(t, err)
		require.NotNil(t, res.DomainLimit)
		assert.Equal(t, res.DomainLimit.MaxM, res.RadiusM)
		assert.Less(t, res.RadiusM, 3000.0)
		assert.Equal(t, 2.0, res.Key.MaxRadiusKM)
		assert.False(t, res.NoShading)
	})

	t.Run("AutoClampBreaksMinRadius", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Visibility.AutoClamp = true
		req := testRequest()
		req.MinRadiusM = 1000
		_, err := newPipeline(t, cfg, src, nil).Run(context.Background(), req)
		var dl *model.DomainLimitError
		require.True(t, errors.As(err, &dl), "got %v", err)
		assert.Less(t, dl.MaxM, 3*req.MinRadiusM)
		assert.Contains(t, dl.Suggestion, "min_radius 1000m")
	})
}

func TestRun_Placement(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Dir = ""
	p := newPipeline(t, cfg, ridgeSource(t, false), nil)

	t.Run("NorthOffset", func(t *testing.T) {
		req := testRequest()
		req.NorthOffset = 90
		res, err := p.Run(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Placed)
		assert.Equal(t, Artifacts{}, res.Artifacts)

		best := res.Placed.Angles()[0]
		for _, s := range res.Placed.Angles() {
			if s.AngleDeg > best.AngleDeg+1e-9 {
				best = s
			}
		}
		assert.InDelta(t, 90, best.AzimuthDeg, 20, "ridge turned to the east")
		assert.Equal(t, cfg.Mask.Radius, res.Mask.Radius, "canonical mask untouched")
	})

	t.Run("Context", func(t *testing.T) {
		req := testRequest()
		req.Context = []orb.Point{{-100, -100}, {100, -100}, {100, 100}, {-100, 100}}
		res, err := p.Run(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, res.Fit)
		assert.GreaterOrEqual(t, res.Fit.Radius, cfg.Fit.MinRadius.Meters())
		assert.InDelta(t, res.Fit.Radius, res.Placed.Radius, 1e-6)
		assert.Equal(t, cfg.Mask.Radius, res.Mask.Radius)
	})

	t.Run("ContextTooFar", func(t *testing.T) {
		req := testRequest()
		req.Context = []orb.Point{{5e6, 5e6}, {5e6 + 10, 5e6}, {5e6, 5e6 + 10}}
		_, err := p.Run(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrContextTooFar)
	})
}

func TestRun_BisectScan(t *testing.T) {
	ctx := context.Background()
	linearCfg := testConfig(t)
	linearCfg.Export.Dir = ""
	bisectCfg := testConfig(t)
	bisectCfg.Export.Dir = ""
	bisectCfg.Scan.Bisect = true

	linear, err := newPipeline(t, linearCfg, ridgeSource(t, false), nil).Run(ctx, testRequest())
	require.NoError(t, err)
	bisect, err := newPipeline(t, bisectCfg, ridgeSource(t, false), nil).Run(ctx, testRequest())
	require.NoError(t, err)

	require.Len(t, bisect.Profile.Samples, len(linear.Profile.Samples))
	for i := range linear.Profile.Samples {
		assert.InDelta(t, linear.Profile.Samples[i].AngleDeg, bisect.Profile.Samples[i].AngleDeg, 1e-9, "azimuth %v", linear.Profile.Samples[i].AzimuthDeg)
	}
}

func TestRun_ScanTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scan.Timeout = config.Duration(time.Nanosecond)
	_, err := newPipeline(t, cfg, ridgeSource(t, false), nil).Run(context.Background(), testRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Location = config.LocationConfig{Name: "Säntis", Lat: 47.249, Lon: 9.343, Elevation: 2502}
	cfg.Visibility.MinRadius = 500
	cfg.Visibility.MaxRadius = 40000
	cfg.Mask.Style = "extruded"
	cfg.View.NorthOffset = -30

	req, err := RequestFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Säntis", req.Location.Name)
	assert.Equal(t, 2502.0, req.Location.Elevation)
	assert.Equal(t, 500.0, req.MinRadiusM)
	assert.Equal(t, 40000.0, req.MaxRadiusM)
	assert.Equal(t, model.StyleExtruded, req.Style)
	assert.Equal(t, 330.0, req.NorthOffset)
	assert.NoError(t, req.Validate())

	cfg.Mask.Style = "cone"
	_, err = RequestFromConfig(cfg)
	assert.Error(t, err)
}

func TestNew_Requires(t *testing.T) {
	_, err := New(Deps{Source: ridgeSource(t, false)})
	assert.Error(t, err)
	_, err = New(Deps{Config: config.DefaultConfig()})
	assert.Error(t, err)

	cfg := config.DefaultConfig()
	cfg.Export.HorizonFormat = "csv"
	_, err = New(Deps{Config: cfg, Source: ridgeSource(t, false)})
	assert.Error(t, err)
}
