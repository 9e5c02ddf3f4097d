package testutil

import (
	"testing"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/spf13/viper"
)

// TestConfigOption is a functional option for configuring a test config.
type TestConfigOption func(*config.Config)

// WithForceOverwrite sets covers.force_overwrite.
func WithForceOverwrite(v bool) TestConfigOption {
	return func(c *config.Config) {
		c.Covers.ForceOverwrite = v
	}
}

// WithFallback sets the fallback cover image.
func WithFallback(path string) TestConfigOption {
	return func(c *config.Config) {
		c.Covers.Fallback = path
	}
}

// WithMaxIterations sets the per-run iteration cap.
func WithMaxIterations(n int) TestConfigOption {
	return func(c *config.Config) {
		c.MaxIterations = n
	}
}

// WithOffset sets the starting offset.
func WithOffset(n int) TestConfigOption {
	return func(c *config.Config) {
		c.Offset = n
	}
}

// WithWatchlistExport sets the watchlist export format.
func WithWatchlistExport(format string) TestConfigOption {
	return func(c *config.Config) {
		c.Watchlist.Export = format
	}
}

// NewTestConfig builds a validated configuration rooted in env: SQLite database
// and cover directory live inside the sandbox, all delays are zero and cover
// downloads are not rate limited.
func NewTestConfig(t *testing.T, env *TestEnv, opts ...TestConfigOption) *config.Config {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}

	cfg.RowDelay = 0
	cfg.Covers.RetryDelay = 0
	cfg.Covers.RequestsPerSecond = 0
	cfg.Covers.Dir = env.Path("covers")
	cfg.Covers.Fallback = ""
	cfg.Covers.RelativePaths = false
	cfg.Database.Path = env.Path("books.db")
	cfg.Watchlist.Dir = env.Path("watchlists")

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config is invalid: %v", err)
	}
	return cfg
}
