package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/config"
	"github.com/julianstephens/habitkeep/internal/storage/sqlite"
)

type InitCmd struct {
	Force bool `help:"Delete an existing SQLite database before initializing."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	if c.Force {
		if _, ok := ctx.Store.(*sqlite.Store); !ok {
			return fmt.Errorf("--force only supports SQLite storage")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			// Close first so the file is not held open
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(cctx); err != nil {
		return err
	}
	ctx.Printf("Initialized habitkeep storage at: %s\n", ctx.Store.GetConfigPath())

	if ctx.ConfigPath == "" {
		return nil
	}
	if _, err := os.Stat(ctx.ConfigPath); os.IsNotExist(err) {
		if err := config.Save(ctx.ConfigPath, ctx.Config); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		ctx.Printf("Wrote config: %s\n", ctx.ConfigPath)
	}
	return nil
}
