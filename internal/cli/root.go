package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/julianstephens/habitkeep/internal/backup"
	"github.com/julianstephens/habitkeep/internal/completion"
	"github.com/julianstephens/habitkeep/internal/config"
	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/migration"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
	"github.com/julianstephens/habitkeep/internal/storage/postgres"
	"github.com/julianstephens/habitkeep/internal/storage/sqlite"
)

type Context struct {
	Store   storage.Provider
	Service *completion.Service
	Config  config.Config
	// ConfigPath is the TOML file the configuration was read from
	ConfigPath string
	Today      func() string
	Out        io.Writer

	base context.Context
}

// Migratable is implemented by stores with a versioned schema
type Migratable interface {
	Migrator() (*migration.Runner, error)
}

// NewContext wires the completion service to store using cfg's timezone
func NewContext(base context.Context, store storage.Provider, cfg config.Config, configPath string) (*Context, error) {
	today, err := dates.TodayResolver(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Context{
		Store:      store,
		Service:    completion.NewService(store, today),
		Config:     cfg,
		ConfigPath: configPath,
		Today:      today,
		Out:        os.Stdout,
		base:       base,
	}, nil
}

// OpenStore picks the storage backend for database, which is a SQLite path,
// a PostgreSQL connection string, or "keyring".
func OpenStore(database string) (storage.Provider, error) {
	dsn, err := config.ResolveDatabase(database)
	if err != nil {
		return nil, err
	}
	if config.IsPostgres(dsn) {
		err := postgres.ValidateConnString(dsn)
		// The keyring is allowed to hold a password
		if errors.Is(err, postgres.ErrEmbeddedCredentials) && database == config.KeyringSource {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		return postgres.New(dsn), nil
	}
	return sqlite.NewStore(dsn), nil
}

// Command returns a context bounded by the configured timeout
func (c *Context) Command() (context.Context, context.CancelFunc) {
	base := c.base
	if base == nil {
		base = context.Background()
	}
	if c.Config.Timeout.Duration <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, c.Config.Timeout.Duration)
}

func (c *Context) User() string {
	return c.Config.User
}

// Day returns day, or today when day is empty
func (c *Context) Day(day string) string {
	if day == "" {
		return c.Today()
	}
	return day
}

func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.out(), args...)
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// FindHabit resolves ref as a habit id first and then as a name, within the
// configured user's habits.
func (c *Context) FindHabit(ctx context.Context, ref string, q models.HabitQuery) (models.Habit, error) {
	q.UserID = c.User()
	habit, err := c.Store.GetHabit(ctx, ref, q)
	if err == nil {
		return habit, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return models.Habit{}, err
	}

	habit, err = c.Store.GetHabitByName(ctx, ref, q)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Habit{}, apperrors.NotFoundf("habit %q", ref)
	}
	return habit, err
}

// PerformAutomaticBackup snapshots a SQLite database and only logs failures
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}
