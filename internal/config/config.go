// Package config loads the colony counter settings from an optional TOML
// file, applies environment overrides and validates the result.
//
// Example file:
//
//	[detection]
//	min_area = 144
//	max_threshold = 160
//
//	[batch]
//	timeout = "90s"
//	workers = 4
//
//	[export]
//	output_dir = "counted_images"
//	overlay_color = "#00FF00"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
)

// Environment variables read by Load.
const (
	EnvConfigPath   = "COLONY_CONFIG"
	EnvBatchTimeout = "COLONY_BATCH_TIMEOUT"
	EnvWorkers      = "COLONY_WORKERS"
	EnvDatabase     = "COLONY_DATABASE"
	EnvLogLevel     = "COLONY_LOG_LEVEL"
	EnvLogFormat    = "COLONY_LOG_FORMAT"
)

// Duration is a time.Duration written as a string ("60s", "2m") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full set of settings.
type Config struct {
	Detection detection.Params `toml:"detection"`
	Session   SessionConfig    `toml:"session"`
	Batch     BatchConfig      `toml:"batch"`
	Cache     CacheConfig      `toml:"cache"`
	Export    ExportConfig     `toml:"export"`
	Log       LogConfig        `toml:"log"`
}

type SessionConfig struct {
	NewBlobRadius float64 `toml:"new_blob_radius"`
	RadiusStep    float64 `toml:"radius_step"`
	MaxHistory    int     `toml:"max_history"`
}

type BatchConfig struct {
	Timeout Duration `toml:"timeout"`
	Workers int      `toml:"workers"` // 0 = one per CPU
}

type CacheConfig struct {
	MaxImages int `toml:"max_images"`
}

type ExportConfig struct {
	OutputDir        string `toml:"output_dir"`
	OverlayColor     string `toml:"overlay_color"`
	OverlayThickness int    `toml:"overlay_thickness"`
	DefaultDilution  string `toml:"default_dilution"`
	Database         string `toml:"database"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Detection: detection.DefaultParams(),
		Session: SessionConfig{
			NewBlobRadius: 40,
			RadiusStep:    1,
			MaxHistory:    50,
		},
		Batch: BatchConfig{
			Timeout: Duration{60 * time.Second},
		},
		Cache: CacheConfig{MaxImages: imaging.DefaultCacheSize},
		Export: ExportConfig{
			OutputDir:        "counted_images",
			OverlayColor:     "#FF0000",
			OverlayThickness: 10,
			DefaultDilution:  "3rd",
			Database:         filepath.Join("counted_images", "colony_counts.db"),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		dec := toml.NewDecoder(f).DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("unknown keys in %s:\n%s", path, strict.String())
			}
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns flagValue, or COLONY_CONFIG when the flag is empty.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// ApplyEnv overrides settings from the environment. Unset variables are
// ignored; malformed values are errors.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvBatchTimeout)); v != "" {
		if err := c.Batch.Timeout.UnmarshalText([]byte(v)); err != nil {
			return apperr.InvalidParameter(EnvBatchTimeout, "must be a duration: %v", err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperr.InvalidParameter(EnvWorkers, "must be an integer, got %q", v)
		}
		c.Batch.Workers = n
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Export.Database = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}

	switch {
	case !(c.Session.NewBlobRadius > 0):
		return apperr.InvalidParameter("session.new_blob_radius", "must be positive, got %v", c.Session.NewBlobRadius)
	case !(c.Session.RadiusStep > 0):
		return apperr.InvalidParameter("session.radius_step", "must be positive, got %v", c.Session.RadiusStep)
	case c.Session.MaxHistory <= 0:
		return apperr.InvalidParameter("session.max_history", "must be positive, got %d", c.Session.MaxHistory)
	case c.Batch.Timeout.Duration < 0:
		return apperr.InvalidParameter("batch.timeout", "must not be negative, got %s", c.Batch.Timeout)
	case c.Batch.Workers < 0:
		return apperr.InvalidParameter("batch.workers", "must not be negative, got %d", c.Batch.Workers)
	case c.Cache.MaxImages <= 0:
		return apperr.InvalidParameter("cache.max_images", "must be positive, got %d", c.Cache.MaxImages)
	case strings.TrimSpace(c.Export.OutputDir) == "":
		return apperr.InvalidParameter("export.output_dir", "must not be empty")
	case c.Export.OverlayThickness < 1:
		return apperr.InvalidParameter("export.overlay_thickness", "must be at least 1, got %d", c.Export.OverlayThickness)
	}

	if _, err := imaging.ParseHexColor(c.Export.OverlayColor); err != nil {
		return apperr.InvalidParameter("export.overlay_color", "%v", err)
	}
	if _, ok := metadata.ParseDilution(c.Export.DefaultDilution); !ok {
		return apperr.InvalidParameter("export.default_dilution", "must be one of 1st, 2nd, 3rd, got %q", c.Export.DefaultDilution)
	}
	return nil
}
