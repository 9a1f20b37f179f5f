package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/habitkeep/internal/cli"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/legacy"
)

type LegacyCmd struct {
	Import  LegacyImportCmd  `cmd:"" help:"Import habits exported with embedded completion maps."`
	Migrate LegacyMigrateCmd `cmd:"" help:"Move embedded completion maps into the completion log."`
}

type LegacyImportCmd struct {
	File    string `arg:"" type:"existingfile" help:"JSON export (comments and trailing commas allowed)."`
	Migrate bool   `help:"Run the legacy migration right after importing."`
}

func (c *LegacyImportCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	exported, err := legacy.ReadExport(f)
	if err != nil {
		return err
	}

	res, err := legacy.NewImporter(ctx.Store, ctx.User()).Import(cctx, exported)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	ctx.Printf("Imported %d habit(s): %d created, %d already present, %d failed\n",
		len(exported), res.Created, res.Existing, res.Failed)

	if !c.Migrate {
		return nil
	}
	return (&LegacyMigrateCmd{}).Run(ctx)
}

type LegacyMigrateCmd struct {
	NoBackup bool `help:"Skip the automatic backup taken before migrating."`
}

func (c *LegacyMigrateCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	if !c.NoBackup {
		ctx.PerformAutomaticBackup(cctx)
	}

	report, err := ctx.Service.Migrator().MigrateAll(cctx)
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render("Legacy migration"))
	ctx.Printf("  Habits visited:    %d\n", report.Habits)
	ctx.Printf("  Habits migrated:   %d\n", report.Migrated)
	ctx.Printf("  Records inserted:  %d\n", report.Inserted)
	ctx.Printf("  Malformed days:    %d\n", report.Skipped)
	ctx.Printf("  Errors:            %d\n", report.Errors)

	if report.Errors == 0 {
		return nil
	}
	for _, f := range report.Failures {
		ctx.Printf("  %s %v\n", cli.ErrorStyle.Render("❌"), f)
	}
	return fmt.Errorf("%w: %d habit(s) failed", apperrors.ErrMigration, report.Errors)
}
