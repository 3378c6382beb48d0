package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Location   LocationConfig   `yaml:"location"`
	Visibility VisibilityConfig `yaml:"visibility"`
	View       ViewConfig       `yaml:"view"`
	Mask       MaskConfig       `yaml:"mask"`
	Scan       ScanConfig       `yaml:"scan"`
	Terrain    TerrainConfig    `yaml:"terrain"`
	Fit        FitConfig        `yaml:"fit"`
	Cache      CacheConfig      `yaml:"cache"`
	Request    RequestConfig    `yaml:"request"`
	Export     ExportConfig     `yaml:"export"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Server     ServerConfig     `yaml:"server"`
}

// LocationConfig is the site the horizon is computed for.
type LocationConfig struct {
	Name      string  `yaml:"name"`
	Lat       float64 `yaml:"lat"`
	Lon       float64 `yaml:"lon"`
	Elevation float64 `yaml:"elevation"` // meters; 0 takes the terrain elevation
}

// VisibilityConfig bounds the terrain taken into account.
type VisibilityConfig struct {
	MinRadius   Distance `yaml:"min_radius"`
	MaxRadius   Distance `yaml:"max_radius"`
	AutoClamp   bool     `yaml:"auto_clamp"`
	ClampMargin Distance `yaml:"clamp_margin"`
}

// ViewConfig describes the observer.
type ViewConfig struct {
	Height      Distance    `yaml:"height"` // above ground
	NorthOffset NorthOffset `yaml:"north_offset"`
}

// MaskConfig holds shading mask synthesis settings.
type MaskConfig struct {
	Style   string  `yaml:"style"`
	Radius  float64 `yaml:"radius"` // object-space units
	Columns int     `yaml:"columns"`
	Rings   int     `yaml:"rings"`
	WeldEps float64 `yaml:"weld_eps"`
}

// ScanConfig holds hemisphere ray casting settings.
type ScanConfig struct {
	PrecisionAzimuth  int      `yaml:"precision_azimuth"`
	PrecisionAltitude int      `yaml:"precision_altitude"`
	Workers           int      `yaml:"workers"` // 0 = one per CPU
	Timeout           Duration `yaml:"timeout"`
	Lift              Distance `yaml:"lift"`
	Bisect            bool     `yaml:"bisect"` // binary search each altitude column
}

// TerrainConfig holds elevation source and mesh settings.
type TerrainConfig struct {
	ElevationFile string   `yaml:"elevation_file"`
	CoverageSouth float64  `yaml:"coverage_south"`
	CoverageNorth float64  `yaml:"coverage_north"`
	CellSize      Distance `yaml:"cell_size"`
	MaxGridSide   int      `yaml:"max_grid_side"`
	PatchCells    int      `yaml:"patch_cells"`
}

// FitConfig holds the scale search settings.
type FitConfig struct {
	StepRatio           float64  `yaml:"step_ratio"`
	Tolerance           float64  `yaml:"tolerance"`
	StableSteps         int      `yaml:"stable_steps"`
	MaxIterations       int      `yaml:"max_iterations"`
	SafetyFactor        float64  `yaml:"safety_factor"`
	MinRadius           Distance `yaml:"min_radius"`
	MaxCentroidDistance Distance `yaml:"max_centroid_distance"`
	SamplesAzimuth      int      `yaml:"samples_azimuth"`
	SamplesAltitude     int      `yaml:"samples_altitude"`
}

// CacheConfig holds mask cache settings.
type CacheConfig struct {
	Dir          string   `yaml:"dir"`
	IndexURL     string   `yaml:"index_url"`
	MemorySize   int      `yaml:"memory_size"`
	MemoryTTL    Duration `yaml:"memory_ttl"`
	H3Resolution int      `yaml:"h3_resolution"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
	Jitter    float64  `yaml:"jitter"`   // random extra fraction of each delay
	Recovery  int      `yaml:"recovery"` // failures forgiven per success, 0 resets
}

// ExportConfig selects the artifacts written next to the cache.
type ExportConfig struct {
	Dir           string `yaml:"dir"`
	HorizonFormat string `yaml:"horizon_format"`
	KML           bool   `yaml:"kml"`
	Chart         bool   `yaml:"chart"`
	Shapefile     bool   `yaml:"shapefile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server      LogSettings `yaml:"server"`
	Requests    LogSettings `yaml:"requests"`
	EnableTrace bool        `yaml:"enable_trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Visibility: VisibilityConfig{
			MinRadius:   0,
			MaxRadius:   Distance(100000), // 100km
			AutoClamp:   true,
			ClampMargin: Distance(500),
		},
		View: ViewConfig{
			Height: Distance(1.5),
		},
		Mask: MaskConfig{
			Style:   "spherical",
			Radius:  200,
			Columns: 360,
			Rings:   8,
			WeldEps: 1e-6,
		},
		Scan: ScanConfig{
			PrecisionAzimuth:  3600,
			PrecisionAltitude: 1200,
			Timeout:           Duration(10 * time.Minute),
			Lift:              Distance(0.001),
		},
		Terrain: TerrainConfig{
			ElevationFile: "data/etopo1/etopo1_ice_g_i2.bin",
			CoverageSouth: -56,
			CoverageNorth: 60,
			CellSize:      Distance(90),
			MaxGridSide:   1201,
			PatchCells:    16,
		},
		Fit: FitConfig{
			StepRatio:           0.5,
			Tolerance:           0.01,
			StableSteps:         2,
			MaxIterations:       40,
			SafetyFactor:        3,
			MinRadius:           Distance(10000),
			MaxCentroidDistance: Distance(100000),
			SamplesAzimuth:      72,
			SamplesAltitude:     18,
		},
		Cache: CacheConfig{
			Dir:          "./data/masks",
			MemorySize:   64,
			MemoryTTL:    Duration(1 * time.Hour),
			H3Resolution: 6,
		},
		Request: RequestConfig{
			Retries: 1,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
				Jitter:    0.1,
				Recovery:  1,
			},
		},
		Export: ExportConfig{
			Dir:           "./data/export",
			HorizonFormat: "plain",
			KML:           true,
			Chart:         true,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:       "./logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  20,
				MaxBackups: 3,
			},
			Requests: LogSettings{
				Path:       "./logs/requests.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 1,
			},
		},
		DB: DBConfig{
			Path: "./data/horizonmask.db",
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Environment fallbacks are applied in memory only and never saved back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Cache.IndexURL == "" {
		if v := os.Getenv("HORIZONMASK_INDEX_URL"); v != "" {
			cfg.Cache.IndexURL = v
		}
	}
	if v := os.Getenv("HORIZONMASK_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("HORIZONMASK_ELEVATION_FILE"); v != "" {
		cfg.Terrain.ElevationFile = v
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# horizonmask configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)
#   North offset: degrees clockwise (12.5) or a vector ([0.2, 0.98])

`)
	data = append(header, data...)

	reStyle := regexp.MustCompile(`(?m)^(\s+)style:`)
	data = reStyle.ReplaceAll(data, []byte("${1}# Options: spherical, extruded\n${1}style:"))

	reFormat := regexp.MustCompile(`(?m)^(\s+)horizon_format:`)
	data = reFormat.ReplaceAll(data, []byte("${1}# Options: plain, short, single-line, restricted\n${1}horizon_format:"))

	reWorkers := regexp.MustCompile(`(?m)^(\s+)workers:`)
	data = reWorkers.ReplaceAll(data, []byte("${1}# 0 uses one worker per CPU\n${1}workers:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
