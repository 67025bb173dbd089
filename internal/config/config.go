// Package config loads and validates the sync tool's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/livinlefevreloca/dinesync/internal/db"
	"github.com/livinlefevreloca/dinesync/internal/orchestrator"
	"github.com/livinlefevreloca/dinesync/internal/plan"
	"github.com/livinlefevreloca/dinesync/internal/progress"
	"github.com/livinlefevreloca/dinesync/internal/uploader"
)

// Environment variables that override file values
const (
	EnvDSN        = "DINESYNC_DB_DSN"
	EnvDBPassword = "DINESYNC_DB_PASSWORD"
	EnvAPIURL     = "DINESYNC_API_URL"
)

// Config represents the application configuration
type Config struct {
	Database db.Config                `toml:"database"`
	API      uploader.Config          `toml:"api"`
	Retry    uploader.RetryPolicy     `toml:"retry"`
	Sync     orchestrator.Config      `toml:"sync"`
	Logging  progress.Config          `toml:"logging"`
	Tasks    map[string]plan.Override `toml:"tasks"`
}

// Error is returned for any missing, malformed or invalid configuration.
// It is fatal: no task runs when loading fails.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigError checks if err came from loading or validating configuration
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:         db.DriverODBC,
			ConnectTimeout: 30 * time.Second,
		},
		API:     uploader.DefaultConfig(),
		Retry:   uploader.DefaultRetryPolicy(),
		Sync:    orchestrator.DefaultConfig(),
		Logging: progress.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML file. Keys the tool does
// not recognise are rejected.
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &Error{Path: path, Err: fmt.Errorf("file does not exist")}
	}

	// Parse TOML file
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &Error{Path: path, Err: fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))}
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return &Error{Err: err}
	}
	return nil
}

func (c *Config) validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != db.DriverODBC && c.Database.Driver != db.DriverSQLite {
		return fmt.Errorf("unsupported database driver: %s (must be %s or %s)", c.Database.Driver, db.DriverODBC, db.DriverSQLite)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must be specified")
	}
	if c.Database.ConnectTimeout < 0 {
		return fmt.Errorf("database connect_timeout must not be negative")
	}

	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}

	// Logging validation
	if _, err := progress.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging max_size_mb and max_backups must not be negative")
	}

	if _, err := c.Plan(); err != nil {
		return err
	}
	return nil
}

// Plan returns the task list with per-task overrides applied
func (c *Config) Plan() ([]plan.Task, error) {
	tasks, err := plan.Apply(plan.Default(), c.Tasks)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(tasks); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("every task is disabled")
	}
	return tasks, nil
}
