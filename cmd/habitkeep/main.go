package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/cli/backups"
	"github.com/julianstephens/habitkeep/internal/cli/habits"
	"github.com/julianstephens/habitkeep/internal/cli/reports"
	"github.com/julianstephens/habitkeep/internal/cli/system"
	"github.com/julianstephens/habitkeep/internal/config"
	"github.com/julianstephens/habitkeep/internal/constants"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/storage"
)

type CLI struct {
	Version kong.VersionFlag `help:"Print version and exit."`
	Config  string           `help:"Config file path (default: $XDG_CONFIG_HOME/habitkeep/config.toml)." type:"path"`
	DB      string           `name:"db" help:"SQLite path, PostgreSQL connection string without a password, or \"keyring\". Overrides the config file."`
	User    string           `help:"Owner of the habits being tracked."`
	TZ      string           `name:"tz" help:"IANA timezone used to resolve today."`
	Timeout time.Duration    `help:"Per-command timeout."`
	Debug   bool             `help:"Mirror debug logs to stderr."`

	Init    system.InitCmd    `cmd:"" help:"Initialize habitkeep storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Keyring system.KeyringCmd `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Legacy  system.LegacyCmd  `cmd:"" help:"Import and migrate embedded completion maps."`

	Habit  habits.HabitCmd  `cmd:"" help:"Manage habits."`
	Toggle habits.ToggleCmd `cmd:"" help:"Flip a day between done and not done."`
	Mark   habits.MarkCmd   `cmd:"" help:"Record a completed day with notes, mood and value."`
	Days   habits.DaysCmd   `cmd:"" help:"List a habit's completed days."`
	Streak habits.StreakCmd `cmd:"" help:"Show streak details and longest runs."`
	Log    habits.LogCmd    `cmd:"" help:"Show habit log (ASCII history)."`

	Report reports.ReportCmd `cmd:"" help:"Monthly counts and leaderboard."`
	Backup backups.BackupCmd `cmd:"" help:"Manage database backups."`
}

// Commands that open the store themselves or do not need it
var skipLoad = map[string]bool{
	"init":    true,
	"doctor":  true,
	"keyring": true,
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		apperrors.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	var app CLI
	parser, err := kong.New(&app,
		kong.Name(constants.AppName),
		kong.Description("Habit completion log and streak engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) {
			_ = perr.Context.PrintUsage(true)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	configPath := app.Config
	if configPath == "" {
		configPath = config.GetPaths().ConfigFile
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := app.apply(&cfg); err != nil {
		return err
	}

	logFile, err := logger.Setup(logger.Options{Dir: config.GetPaths().LogDir, Debug: cfg.Debug, Echo: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	} else {
		defer logFile.Close()
	}

	command := strings.Fields(kctx.Command())[0]

	var store storage.Provider
	if command != "keyring" {
		store, err = cli.OpenStore(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	base, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	appCtx, err := cli.NewContext(base, store, cfg, configPath)
	if err != nil {
		return err
	}
	appCtx.Out = out

	if !skipLoad[command] {
		lctx, cancel := appCtx.Command()
		err := store.Load(lctx)
		cancel()
		if err != nil {
			return err
		}
	}

	logger.Debug("running command", "command", kctx.Command(), "user", cfg.User)
	return kctx.Run(appCtx)
}

// apply layers command-line flags over the loaded configuration
func (app *CLI) apply(cfg *config.Config) error {
	if app.DB != "" {
		cfg.Database = app.DB
	}
	if app.User != "" {
		cfg.User = app.User
	}
	if app.TZ != "" {
		cfg.Timezone = app.TZ
	}
	if app.Timeout > 0 {
		cfg.Timeout = config.Duration{Duration: app.Timeout}
	}
	if app.Debug {
		cfg.Debug = true
	}
	return cfg.Validate()
}
