package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitkeep/internal/constants"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/keyring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{constants.EnvDB, constants.EnvDBConnection, constants.EnvUser, constants.EnvTimezone} {
		t.Setenv(k, "")
	}
}

func TestGetPathsRespectsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	p := GetPaths()
	if p.ConfigDir != filepath.Join(dir, "habitkeep") {
		t.Errorf("ConfigDir = %q", p.ConfigDir)
	}
	if p.ConfigFile != filepath.Join(dir, "habitkeep", "config.toml") {
		t.Errorf("ConfigFile = %q", p.ConfigFile)
	}
	if p.DBFile != filepath.Join(dir, "habitkeep", "habitkeep.db") {
		t.Errorf("DBFile = %q", p.DBFile)
	}
	if p.LogDir != filepath.Join(dir, "habitkeep", "logs") {
		t.Errorf("LogDir = %q", p.LogDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLayering(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
database = "/data/habits.db"
user = "alice"
timezone = "Europe/Berlin"
debug = true
timeout = "5s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Config{
		Database: "/data/habits.db",
		User:     "alice",
		Timezone: "Europe/Berlin",
		Debug:    true,
		Timeout:  Duration{5 * time.Second},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("file config mismatch (-want +got):\n%s", diff)
	}

	t.Setenv(constants.EnvUser, "bob")
	t.Setenv(constants.EnvDB, "/env/habits.db")
	t.Setenv(constants.EnvTimezone, "UTC")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.User != "bob" || cfg.Database != "/env/habits.db" || cfg.Timezone != "UTC" {
		t.Errorf("environment should override file: %+v", cfg)
	}

	t.Setenv(constants.EnvDBConnection, "postgres://bob@db/habits")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database != "postgres://bob@db/habits" {
		t.Errorf("connection string should win over %s, got %q", constants.EnvDB, cfg.Database)
	}
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `user = `},
		{"bad timeout", `timeout = "soon"`},
		{"bad timezone", `timezone = "Mars/Olympus"`},
		{"empty user", `user = " "`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte(`timezone = "Mars/Olympus"`), 0600)
	if _, err := Load(path); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("bad timezone should be a validation error, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Config{Database: "/tmp/x.db", User: "carol", Timezone: "UTC", Timeout: Duration{time.Minute}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIsPostgres(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"postgres://u@h/db", true},
		{"postgresql://u@h/db", true},
		{"host=localhost dbname=habits", true},
		{"/home/u/.config/habitkeep/habitkeep.db", false},
		{"habits.db", false},
	}
	for _, tt := range tests {
		if got := IsPostgres(tt.dsn); got != tt.want {
			t.Errorf("IsPostgres(%q) = %v, want %v", tt.dsn, got, tt.want)
		}
	}
}

func TestResolveDatabase(t *testing.T) {
	gokeyring.MockInit()

	if got, err := ResolveDatabase("/tmp/a.db"); err != nil || got != "/tmp/a.db" {
		t.Errorf("ResolveDatabase(path) = %q, %v", got, err)
	}

	if _, err := ResolveDatabase("keyring"); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("empty keyring should surface ErrNotFound, got %v", err)
	}

	if err := keyring.SetConnectionString("postgres://u@h/db"); err != nil {
		t.Fatalf("SetConnectionString failed: %v", err)
	}
	got, err := ResolveDatabase("keyring")
	if err != nil || got != "postgres://u@h/db" {
		t.Errorf("ResolveDatabase(keyring) = %q, %v", got, err)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if got, _ := ResolveDatabase("~/h.db"); got != filepath.Join(home, "h.db") {
			t.Errorf("home not expanded: %q", got)
		}
	}
}
