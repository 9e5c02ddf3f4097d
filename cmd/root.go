package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/bookseed/cmd/books"
	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var (
	runImport           = books.Run
	stdout    io.Writer = os.Stdout
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string   `help:"Path to a YAML config file (defaults to ./config.yaml when present)"`
	EnvFile  []string `help:"Dotenv files to load before reading the environment" default:".env,../.env"`
	LogLevel string   `help:"Log level (debug, info, warn, error)"`
}

// CLI represents the complete command structure for the bookseed application
type CLI struct {
	Globals

	Import ImportCmd `cmd:"" help:"Import a CSV book catalog into the books table"`
}

// ImportCmd represents the import command. Unset flags keep the configured value.
type ImportCmd struct {
	Input         string         `short:"f" help:"Path to the catalog CSV file"`
	Offset        *int           `help:"Number of data rows to skip before importing"`
	MaxIterations *int           `help:"Maximum number of rows to import in this run"`
	RowDelay      *time.Duration `help:"Pause between rows (e.g. 2s)"`

	CoverDir         string `help:"Directory for downloaded cover images"`
	Fallback         string `help:"Image path used when a cover cannot be fetched"`
	NoFallback       bool   `help:"Store NULL instead of a fallback image"`
	NoForceOverwrite bool   `help:"Keep existing cover files and pick a new name on collision"`
	KeepOriginal     bool   `help:"Keep the downloaded original and write a resized copy next to it"`
	AbsolutePaths    bool   `help:"Store absolute cover paths"`
	Interactive      bool   `help:"Prompt in the terminal for name collisions and watchlist exports"`

	Export       string `help:"Watchlist export format (none, json, text, yaml)"`
	WatchlistDir string `help:"Directory for exported watchlist files"`

	DBDriver   string `name:"db-driver" help:"Database driver (sqlite, mysql, postgres)"`
	DBPath     string `name:"db-path" help:"SQLite database file"`
	DBHost     string `name:"db-host" help:"Database host"`
	DBPort     *int   `name:"db-port" help:"Database port"`
	DBUser     string `name:"db-user" help:"Database user"`
	DBPassword string `name:"db-password" help:"Database password"`
	DBName     string `name:"db-name" help:"Database name"`
	Table      string `help:"Target table"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bookseed"),
		kong.Description("Seed a books table from a CSV catalog, downloading and resizing cover images."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli.Globals); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// Run loads the configuration, applies flag overrides and imports one batch.
func (c *ImportCmd) Run(g *Globals) error {
	v := viper.New()
	if err := initConfig(v, g); err != nil {
		return err
	}
	c.apply(v)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	initLogging(cfg.Log.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runImport(ctx, cfg, stdout)
	if summary != nil {
		slog.Info("Next run should start at offset", "offset", summary.NextOffset, "run_id", summary.RunID)
	}
	return err
}

func (c *ImportCmd) apply(v *viper.Viper) {
	setString(v, "input", c.Input)
	if c.Offset != nil {
		v.Set("offset", *c.Offset)
	}
	if c.MaxIterations != nil {
		v.Set("max_iterations", *c.MaxIterations)
	}
	if c.RowDelay != nil {
		v.Set("row_delay", *c.RowDelay)
	}

	setString(v, "covers.dir", c.CoverDir)
	setString(v, "covers.fallback", c.Fallback)
	if c.NoFallback {
		v.Set("covers.fallback", "")
	}
	if c.NoForceOverwrite {
		v.Set("covers.force_overwrite", false)
	}
	if c.KeepOriginal {
		v.Set("covers.resize_in_place", false)
	}
	if c.AbsolutePaths {
		v.Set("covers.relative_paths", false)
	}
	if c.Interactive {
		v.Set("interactive", true)
	}

	setString(v, "watchlist.export", c.Export)
	setString(v, "watchlist.dir", c.WatchlistDir)

	setString(v, "database.driver", c.DBDriver)
	setString(v, "database.path", c.DBPath)
	setString(v, "database.host", c.DBHost)
	if c.DBPort != nil {
		v.Set("database.port", *c.DBPort)
	}
	setString(v, "database.user", c.DBUser)
	setString(v, "database.password", c.DBPassword)
	setString(v, "database.name", c.DBName)
	setString(v, "database.table", c.Table)
}

func setString(v *viper.Viper, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func initConfig(v *viper.Viper, g *Globals) error {
	for _, file := range g.EnvFile {
		if err := godotenv.Load(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.WrapConfigError("env_file", "failed to load "+file, err)
		}
		slog.Debug("Loaded environment file", "path", file)
	}

	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return errors.WrapConfigError("env", "failed to bind environment", err)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if g.Config != "" {
		v.SetConfigFile(g.Config)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("Config file not found, using defaults")
		} else {
			return errors.WrapConfigError("config", "failed to read config file", err)
		}
	}

	if g.LogLevel != "" {
		v.Set("log.level", g.LogLevel)
	}
	return nil
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
