package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/models"
)

type DoctorCmd struct {
	Fix bool `help:"Recompute cached streaks that disagree with the completion log."`
}

type check struct {
	name    string
	run     func(context.Context, *cli.Context) error
	needsDB bool // skipped once the database is unreachable
}

func (c *DoctorCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	checks := []check{
		{name: "Database connectivity", run: checkDBReachable},
		{name: "Schema version", run: checkSchemaVersion, needsDB: true},
		{name: "Timezone", run: checkTimezone},
		{name: "Legacy migration", run: checkLegacyPending, needsDB: true},
		{name: "Streak cache", run: c.checkStreaks, needsDB: true},
	}

	hasError := false
	dbReachable := true
	for _, chk := range checks {
		if chk.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (database not reachable)\n", chk.name)
			continue
		}
		if err := chk.run(cctx, ctx); err != nil {
			ctx.Printf("%s %s: FAIL\n", cli.ErrorStyle.Render("❌"), chk.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if chk.name == "Database connectivity" {
				dbReachable = false
			}
			continue
		}
		ctx.Printf("%s %s: OK\n", cli.SuccessStyle.Render("✓"), chk.name)
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(cctx context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(cctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return nil
}

func checkSchemaVersion(cctx context.Context, ctx *cli.Context) error {
	m, ok := ctx.Store.(cli.Migratable)
	if !ok {
		return nil
	}
	runner, err := m.Migrator()
	if err != nil {
		return err
	}
	current, err := runner.GetCurrentVersion(cctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	latest, err := runner.GetLatestVersion()
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("schema version %d, expected %d (run 'habitkeep migrate')", current, latest)
	}
	return nil
}

func checkTimezone(_ context.Context, ctx *cli.Context) error {
	if _, err := dates.LoadLocation(ctx.Config.Timezone); err != nil {
		return err
	}
	return dates.Validate(ctx.Today())
}

// checkLegacyPending fails while any of the user's habits still read from
// the embedded day map.
func checkLegacyPending(cctx context.Context, ctx *cli.Context) error {
	pending, err := ctx.Store.ListHabits(cctx, models.HabitQuery{
		UserID:          ctx.User(),
		IncludeArchived: true,
		IncludeDeleted:  true,
		OnlyUnmigrated:  true,
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d habit(s) not migrated to the completion log (run 'habitkeep legacy migrate')", len(pending))
	}
	return nil
}

// checkStreaks compares each cached streak with one derived from the log.
// With --fix, drifted habits are recomputed in place.
func (c *DoctorCmd) checkStreaks(cctx context.Context, ctx *cli.Context) error {
	habits, err := ctx.Store.ListHabits(cctx, models.HabitQuery{UserID: ctx.User(), IncludeArchived: true})
	if err != nil {
		return err
	}

	today := ctx.Today()
	var drifted []models.Habit
	for _, h := range habits {
		detail, err := ctx.Service.GetStreakDetail(cctx, h.ID, ctx.User())
		if err != nil {
			return fmt.Errorf("habit %q: %w", h.Name, err)
		}
		if detail.Longest != h.Streak.Longest ||
			detail.LastCompletedDate != h.Streak.LastCompletedDate ||
			detail.Current != h.Streak.EffectiveCurrent(today) {
			drifted = append(drifted, h)
		}
	}
	if len(drifted) == 0 {
		return nil
	}

	if !c.Fix {
		return fmt.Errorf("%d habit(s) have stale streaks (run 'habitkeep doctor --fix')", len(drifted))
	}
	for _, h := range drifted {
		state, err := ctx.Service.Recompute(cctx, h.ID)
		if err != nil {
			return fmt.Errorf("failed to recompute %q: %w", h.Name, err)
		}
		ctx.Printf("   fixed %s: current %d, longest %d\n", h.Name, state.Current, state.Longest)
	}
	return nil
}
