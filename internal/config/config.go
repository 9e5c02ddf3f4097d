// Package config holds the importer configuration. Values come from viper
// (defaults, config.yaml, environment, .env) and are passed around explicitly.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Watchlist export formats.
const (
	ExportNone = "none"
	ExportJSON = "json"
	ExportText = "text"
	ExportYAML = "yaml"
)

// Config is the complete importer configuration.
type Config struct {
	Input         string        `mapstructure:"input"`
	Offset        int           `mapstructure:"offset"`
	MaxIterations int           `mapstructure:"max_iterations"`
	RowDelay      time.Duration `mapstructure:"row_delay"`
	Interactive   bool          `mapstructure:"interactive"`

	Covers    CoverConfig     `mapstructure:"covers"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Log       LogConfig       `mapstructure:"log"`
}

// CoverConfig controls cover download, naming and resizing.
type CoverConfig struct {
	Dir            string        `mapstructure:"dir"`
	Fallback       string        `mapstructure:"fallback"`
	ForceOverwrite bool          `mapstructure:"force_overwrite"`
	ResizeInPlace  bool          `mapstructure:"resize_in_place"`
	RelativePaths  bool          `mapstructure:"relative_paths"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Attempts       int           `mapstructure:"attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`

	// RequestsPerSecond caps cover downloads across rows and retries; 0 disables the cap.
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

// InventoryConfig bounds the seeded inventory quantity (inclusive).
type InventoryConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// DatabaseConfig describes the target database.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	Table       string `mapstructure:"table"`
	CreateTable bool   `mapstructure:"create_table"`
}

// WatchlistConfig selects how watchlists are surfaced at the end of a run.
type WatchlistConfig struct {
	Export string `mapstructure:"export"`
	Dir    string `mapstructure:"dir"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default values
const (
	DefaultMaxIterations = 50
	DefaultRowDelay      = 2 * time.Second
	DefaultCoverWidth    = 190
	DefaultCoverHeight   = 231
	DefaultFetchAttempts = 2
	DefaultRetryDelay    = 1500 * time.Millisecond
	DefaultCoverRate     = 2
	DefaultInventoryMin  = 4
	DefaultInventoryMax  = 12
	DefaultTable         = "books"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("max_iterations", DefaultMaxIterations)
	v.SetDefault("row_delay", DefaultRowDelay)
	v.SetDefault("interactive", false)

	v.SetDefault("covers.dir", "./public/bookCovers")
	v.SetDefault("covers.fallback", "./public/bookCovers/not_available.png")
	v.SetDefault("covers.force_overwrite", true)
	v.SetDefault("covers.resize_in_place", true)
	v.SetDefault("covers.relative_paths", true)
	v.SetDefault("covers.width", DefaultCoverWidth)
	v.SetDefault("covers.height", DefaultCoverHeight)
	v.SetDefault("covers.attempts", DefaultFetchAttempts)
	v.SetDefault("covers.retry_delay", DefaultRetryDelay)
	v.SetDefault("covers.timeout", 30*time.Second)
	v.SetDefault("covers.requests_per_second", DefaultCoverRate)

	v.SetDefault("inventory.min", DefaultInventoryMin)
	v.SetDefault("inventory.max", DefaultInventoryMax)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "./books.db")
	v.SetDefault("database.table", DefaultTable)
	v.SetDefault("database.create_table", true)

	v.SetDefault("watchlist.export", ExportNone)
	v.SetDefault("watchlist.dir", ".")

	v.SetDefault("log.level", "info")
}

// BindEnv maps the conventional database environment variables onto config keys.
func BindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"database.driver":   "DB_DRIVER",
		"database.path":     "DB_PATH",
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.name":     "DB_NAME",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapConfigError("", "failed to decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and returns a *errors.ConfigError on the first problem.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Covers.Dir == "" {
		return errors.NewConfigError("covers.dir", "cover directory is required")
	}
	if c.Covers.Width <= 0 || c.Covers.Height <= 0 {
		return errors.NewConfigError("covers", fmt.Sprintf("invalid dimensions %dx%d", c.Covers.Width, c.Covers.Height))
	}
	if c.Covers.Attempts < 1 {
		return errors.NewConfigError("covers.attempts", "must be at least 1")
	}
	if c.Covers.RequestsPerSecond < 0 {
		return errors.NewConfigError("covers.requests_per_second", "must not be negative")
	}
	if c.Inventory.Min < 0 || c.Inventory.Min > c.Inventory.Max {
		return errors.NewConfigError("inventory", fmt.Sprintf("invalid range [%d, %d]", c.Inventory.Min, c.Inventory.Max))
	}
	switch c.Watchlist.Export {
	case "", ExportNone, ExportJSON, ExportText, ExportYAML:
	default:
		return errors.NewConfigError("watchlist.export", fmt.Sprintf("unknown format %q", c.Watchlist.Export))
	}
	return nil
}

// Validate checks that enough connection details are present for the driver.
func (d DatabaseConfig) Validate() error {
	switch strings.ToLower(d.Driver) {
	case DriverSQLite:
		if d.Path == "" {
			return errors.NewConfigError("database.path", "sqlite database path is required")
		}
	case DriverMySQL, DriverPostgres:
		if d.Host == "" || d.User == "" || d.Name == "" {
			return errors.NewConfigError("database", "host, user and name are required for "+d.Driver)
		}
	case "":
		return errors.NewConfigError("database.driver", "database config is missing")
	default:
		return errors.NewConfigError("database.driver", fmt.Sprintf("unsupported driver %q", d.Driver))
	}
	return nil
}

// TableName returns the configured table or the default "books".
func (d DatabaseConfig) TableName() string {
	if d.Table == "" {
		return DefaultTable
	}
	return d.Table
}

// SlogLevel converts the configured level to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
