// Package config resolves habitkeep settings from defaults, the TOML config
// file, and the environment. Command-line flags are applied last by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/keyring"
)

// Config is the on-disk configuration
type Config struct {
	// Database is a SQLite file path or a PostgreSQL connection string
	// without a password.
	Database string   `toml:"database"`
	User     string   `toml:"user"`
	Timezone string   `toml:"timezone"`
	Debug    bool     `toml:"debug"`
	Timeout  Duration `toml:"timeout"`
}

// Duration lets timeouts be written as "30s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Paths returns standard XDG-compliant locations
type Paths struct {
	ConfigDir  string
	ConfigFile string
	DBFile     string
	LogDir     string
}

// GetPaths resolves paths, respecting XDG_CONFIG_HOME
func GetPaths() Paths {
	home, _ := os.UserHomeDir()
	base := envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	dir := filepath.Join(base, constants.AppName)
	return Paths{
		ConfigDir:  dir,
		ConfigFile: filepath.Join(dir, constants.ConfigFileName),
		DBFile:     filepath.Join(dir, constants.DefaultDBFile),
		LogDir:     filepath.Join(dir, "logs"),
	}
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Database: GetPaths().DBFile,
		User:     constants.DefaultUser,
		Timezone: constants.DefaultTimezone,
		Timeout:  Duration{constants.DefaultTimeout},
	}
}

// Load reads path (the default config file when empty) over the defaults and
// then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = GetPaths().ConfigFile
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(constants.EnvDBConnection); v != "" {
		cfg.Database = v
	} else if v := os.Getenv(constants.EnvDB); v != "" {
		cfg.Database = v
	}
	cfg.User = envOr(constants.EnvUser, cfg.User)
	cfg.Timezone = envOr(constants.EnvTimezone, cfg.Timezone)
}

// Validate checks values that would otherwise fail late
func (c Config) Validate() error {
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("user must not be empty")
	}
	if _, err := dates.LoadLocation(c.Timezone); err != nil {
		return err
	}
	if c.Timeout.Duration < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Save writes cfg as TOML, creating the config directory
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// IsPostgres reports whether dsn names a PostgreSQL database rather than a
// SQLite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") ||
		strings.Contains(dsn, "dbname=")
}

// KeyringSource as the database setting reads the PostgreSQL connection
// string from the OS keyring.
const KeyringSource = "keyring"

// ResolveDatabase returns the database to open
func ResolveDatabase(dsn string) (string, error) {
	if dsn != KeyringSource {
		return ExpandHome(dsn), nil
	}
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		return "", fmt.Errorf("failed to read database connection from keyring: %w", err)
	}
	return connStr, nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
