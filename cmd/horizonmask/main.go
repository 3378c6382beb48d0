package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"

	"horizonmask/internal/api"
	"horizonmask/pkg/cache"
	"horizonmask/pkg/config"
	"horizonmask/pkg/core"
	"horizonmask/pkg/db"
	"horizonmask/pkg/db/maintenance"
	"horizonmask/pkg/geo"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/logging"
	"horizonmask/pkg/probe"
	"horizonmask/pkg/request"
	"horizonmask/pkg/store"
	"horizonmask/pkg/terrain"
	"horizonmask/pkg/tracker"
	"horizonmask/pkg/version"
)

const (
	defaultConfigPath   = "configs/horizonmask.yaml"
	maintenanceInterval = 24 * time.Hour
)

// options are the command line settings. Location flags override the
// location section of the config file when set.
type options struct {
	ConfigPath string
	InitConfig bool
	Serve      bool

	Name    string
	Lat     *float64
	Lon     *float64
	Style   string
	Context []orb.Point
	Date    time.Time
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("horizonmask", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", defaultConfigPath, "Path to the config file")
	fs.BoolVar(&opts.InitConfig, "init-config", false, "Generate default config file and exit")
	fs.BoolVar(&opts.Serve, "serve", false, "Run the HTTP API instead of a single computation")
	fs.StringVar(&opts.Name, "name", "", "Location name")
	fs.StringVar(&opts.Style, "style", "", "Mask style: spherical or extruded")
	lat := fs.String("lat", "", "Latitude in degrees")
	lon := fs.String("lon", "", "Longitude in degrees")
	ctxCorners := fs.String("context", "", "Scene corners in local meters, e.g. -50,-50;50,-50;50,50")
	date := fs.String("date", "", "Report the hours of direct sun on this UTC day (YYYY-MM-DD)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	var err error
	if opts.Lat, err = optionalFloat("lat", *lat); err != nil {
		return opts, err
	}
	if opts.Lon, err = optionalFloat("lon", *lon); err != nil {
		return opts, err
	}
	if *date != "" {
		if opts.Date, err = time.Parse(time.DateOnly, *date); err != nil {
			return opts, fmt.Errorf("invalid -date %q: %w", *date, err)
		}
	}
	if *ctxCorners != "" {
		if opts.Context, err = parseContext(*ctxCorners); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func optionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q: %w", name, s, err)
	}
	return &v, nil
}

// parseContext reads "x,y;x,y;..." corners of the scene bounding box.
func parseContext(s string) ([]orb.Point, error) {
	var pts []orb.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xy := strings.Split(pair, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid context corner %q: want x,y", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid context corner %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid context corner %q: %w", pair, err)
		}
		pts = append(pts, orb.Point{x, y})
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("context needs at least 3 corners, got %d", len(pts))
	}
	return pts, nil
}

func (o options) apply(cfg *config.Config) {
	if o.Name != "" {
		cfg.Location.Name = o.Name
	}
	if o.Lat != nil {
		cfg.Location.Lat = *o.Lat
		// a configured elevation belongs to the configured site
		cfg.Location.Elevation = 0
	}
	if o.Lon != nil {
		cfg.Location.Lon = *o.Lon
		cfg.Location.Elevation = 0
	}
	if o.Style != "" {
		cfg.Mask.Style = o.Style
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	// Handle --init-config flag
	if opts.InitConfig {
		if err := config.GenerateDefault(opts.ConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", opts.ConfigPath)
		return
	}

	// .env is optional
	_ = godotenv.Load()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.apply(appCfg)
	if err := appCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("horizonmask started", "version", version.Version, "serve", opts.Serve)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := startupChecks(ctx, appCfg); err != nil {
		return err
	}

	tr := tracker.New()
	maskCache, err := initCache(appCfg, st, tr)
	if err != nil {
		return err
	}

	elev, err := terrain.OpenETOPO(appCfg.Terrain.ElevationFile, geo.Band{
		South: appCfg.Terrain.CoverageSouth,
		North: appCfg.Terrain.CoverageNorth,
	})
	if err != nil {
		return fmt.Errorf("failed to open elevation data: %w", err)
	}
	defer elev.Close()

	pipeline, err := core.New(core.Deps{
		Config: appCfg,
		Source: elev,
		Cache:  maskCache,
		Logger: slog.With("component", "pipeline"),
	})
	if err != nil {
		return err
	}

	if opts.Serve {
		return runServer(ctx, appCfg, pipeline, maskCache, tr, st, dbConn)
	}

	if err := maintenance.Run(ctx, st, dbConn); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	req, err := core.RequestFromConfig(appCfg)
	if err != nil {
		return err
	}
	req.Context = opts.Context

	res, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	printSummary(out, res, opts.Date)
	return nil
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func startupChecks(ctx context.Context, cfg *config.Config) error {
	probes := []probe.Probe{
		{
			Name:     "Elevation data",
			Check:    probe.FileSize(cfg.Terrain.ElevationFile, terrain.ETOPO1Size),
			Critical: true,
		},
		{
			Name:     "Mask cache dir",
			Check:    probe.WritableDir(cfg.Cache.Dir),
			Critical: true,
		},
	}
	if cfg.Export.Dir != "" {
		probes = append(probes, probe.Probe{
			Name:  "Export dir",
			Check: probe.WritableDir(cfg.Export.Dir),
		})
	}

	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	return nil
}

func initCache(cfg *config.Config, st store.Store, tr *tracker.Tracker) (*cache.Cache, error) {
	format, err := horizon.ParseFormat(cfg.Export.HorizonFormat)
	if err != nil {
		return nil, err
	}

	var remote *cache.RemoteIndex
	if cfg.Cache.IndexURL != "" {
		reqClient := request.New(st, tr, request.Options{
			Retries:   cfg.Request.Retries,
			Timeout:   time.Duration(cfg.Request.Timeout),
			BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
			MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
			Jitter:    cfg.Request.Backoff.Jitter,
			Recovery:  cfg.Request.Backoff.Recovery,
		})
		remote = cache.NewRemoteIndex(cfg.Cache.IndexURL, reqClient)
		slog.Info("Remote mask index enabled", "url", cfg.Cache.IndexURL)
	}

	c, err := cache.New(st, remote, tr, cache.Options{
		Dir:           cfg.Cache.Dir,
		MemorySize:    cfg.Cache.MemorySize,
		MemoryTTL:     time.Duration(cfg.Cache.MemoryTTL),
		H3Resolution:  cfg.Cache.H3Resolution,
		HorizonFormat: format,
	}, slog.With("component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mask cache: %w", err)
	}
	return c, nil
}

func printSummary(w io.Writer, res *core.Result, day time.Time) {
	loc := res.Header.Location
	fmt.Fprintf(w, "Location:    %s\n", loc)
	fmt.Fprintf(w, "Radius:      %.1f km\n", res.RadiusM/1000)
	if res.DomainLimit != nil {
		fmt.Fprintf(w, "Clamped:     %s\n", res.DomainLimit.Suggestion)
	}
	fmt.Fprintf(w, "Source:      %s\n", res.Source)
	if res.NoShading {
		fmt.Fprintln(w, "Shading:     none, the terrain never rises above the view point")
	} else {
		fmt.Fprintf(w, "Max angle:   %.2f° at %.1f°\n", res.Profile.MaxAngle, res.Profile.MaxAzimuth)
	}
	if !day.IsZero() {
		lit := horizon.SunHours(res.Profile, day, loc.Lat, loc.Lon, 5*time.Minute)
		fmt.Fprintf(w, "Sun hours:   %.1f h on %s\n", lit.Hours(), day.Format(time.DateOnly))
	}
	if res.Fit != nil {
		fmt.Fprintf(w, "Fit radius:  %.1f m (converged: %t)\n", res.Fit.Radius, res.Fit.Converged)
	}
	for _, a := range []struct{ label, path string }{
		{"Horizon", res.Artifacts.Horizon},
		{"OBJ", res.Artifacts.OBJ},
		{"KML", res.Artifacts.KML},
		{"Chart", res.Artifacts.Chart},
		{"Shapefile", res.Artifacts.Shapefile},
	} {
		if a.path != "" {
			fmt.Fprintf(w, "%-12s %s\n", a.label+":", a.path)
		}
	}
	fmt.Fprintf(w, "Duration:    %s\n", res.Duration.Round(time.Millisecond))
}

func runServer(ctx context.Context, cfg *config.Config, p *core.Pipeline, c *cache.Cache, tr *tracker.Tracker, st store.Store, dbConn *db.DB) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	sched := core.NewScheduler(core.DefaultTickInterval, slog.With("component", "scheduler"))
	sched.AddJob(core.NewTimeJob("Maintenance", maintenanceInterval, func(jobCtx context.Context) {
		if err := maintenance.Run(jobCtx, st, dbConn); err != nil {
			slog.Error("Maintenance tasks failed", "error", err)
		}
	}))
	go sched.Start(ctx)

	defaults, err := core.RequestFromConfig(cfg)
	if err != nil {
		return err
	}

	srv := api.NewServer(cfg.Server.Address,
		api.NewHorizonHandler(p, defaults),
		api.NewCacheHandler(c),
		api.NewStatsHandler(tr),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
