package system

import (
	"fmt"

	"github.com/julianstephens/habitkeep/internal/cli"
)

type MigrateCmd struct {
	NoBackup bool `help:"Skip the automatic backup taken before applying migrations."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	m, ok := ctx.Store.(cli.Migratable)
	if !ok {
		return fmt.Errorf("storage backend does not support schema migrations")
	}
	runner, err := m.Migrator()
	if err != nil {
		return err
	}

	pending, err := runner.Pending(cctx)
	if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}
	if pending == 0 {
		ctx.Println("No migrations to apply. Database is up to date.")
		return nil
	}

	if !c.NoBackup {
		ctx.PerformAutomaticBackup(cctx)
	}

	count, err := runner.ApplyMigrations(cctx, func(msg string) {
		ctx.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	return nil
}
