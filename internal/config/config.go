// Package config handles pipeline configuration loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"exo-etl/internal/domain"
)

// DefaultFile is the config file looked up when none is given explicitly.
const DefaultFile = "exoetl.yaml"

// Config holds the pipeline settings. All paths are relative to ProjectRoot
// unless absolute.
type Config struct {
	ProjectRoot string `yaml:"project_root"` // contains data/, docs/, artifacts/
	DBPath      string `yaml:"db_path"`      // DuckDB storage file
	RawCSV      string `yaml:"raw_csv"`      // raw input CSV
	MetaDBPath  string `yaml:"meta_db_path"` // SQLite run-history metastore
	Mode        string `yaml:"mode"`         // refine, model, aggregate, export, all
	Threads     int    `yaml:"threads"`      // DuckDB threads pragma
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	return &Config{
		ProjectRoot: ".",
		DBPath:      "data/exoplanets.duckdb",
		RawCSV:      "data/raw/pscomppars.csv",
		MetaDBPath:  "data/exoetl_meta.sqlite",
		Mode:        string(domain.ModeAll),
		Threads:     4,
		LogLevel:    "info",
	}
}

// Load builds the configuration: defaults, then the yaml file, then EXOETL_*
// environment overrides. A missing file is only an error when the path was
// set explicitly (explicit=true).
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// no config file is fine
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays EXOETL_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("EXOETL_PROJECT_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv("EXOETL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("EXOETL_RAW_CSV"); v != "" {
		c.RawCSV = v
	}
	if v := os.Getenv("EXOETL_META_DB_PATH"); v != "" {
		c.MetaDBPath = v
	}
	if v := os.Getenv("EXOETL_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("EXOETL_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Threads = n
		}
	}
	if v := os.Getenv("EXOETL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, err := domain.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Threads < 1 {
		return domain.ErrValidation("threads must be at least 1, got %d", c.Threads)
	}
	if c.DBPath == "" {
		return domain.ErrValidation("db_path must not be empty")
	}
	if c.RawCSV == "" {
		return domain.ErrValidation("raw_csv must not be empty")
	}
	return nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
