// Package legacy moves completions out of the day map embedded on habit
// documents and into the normalized completion log.
package legacy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
)

// Report summarizes a batch migration
type Report struct {
	Habits   int     // habits visited
	Migrated int     // habits marked migrated
	Inserted int     // log rows created
	Skipped  int     // malformed day keys ignored
	Errors   int     // per-habit failures, including AfterHabit failures
	Failures []error // one *apperrors.MigrationError per failure
}

// Migrator converts embedded day maps into completion records
type Migrator struct {
	store storage.Provider
	now   func() time.Time

	// AfterHabit runs after each habit in MigrateAll, typically a streak
	// recompute. Its failures are counted but do not stop the batch.
	AfterHabit func(ctx context.Context, habitID string) error
}

func NewMigrator(store storage.Provider) *Migrator {
	return &Migrator{store: store, now: time.Now}
}

type habitResult struct {
	considered int
	inserted   int
	skipped    int
}

// MigrateHabit writes every true day of the habit's embedded map into the
// log (insert-if-absent) and marks the habit migrated. It returns the number
// of true days considered, which is the same on every run.
func (m *Migrator) MigrateHabit(ctx context.Context, habit models.Habit) (int, error) {
	res, err := m.migrate(ctx, habit)
	return res.considered, err
}

func (m *Migrator) migrate(ctx context.Context, habit models.Habit) (habitResult, error) {
	var res habitResult

	candidates := habit.LegacyCompletedDays()
	sort.Strings(candidates)

	days := make([]string, 0, len(candidates))
	for _, day := range candidates {
		if err := dates.Validate(day); err != nil {
			logger.Warn("skipping malformed legacy day", "habit", habit.ID, "day", day)
			res.skipped++
			continue
		}
		days = append(days, day)
	}
	res.considered = len(days)

	if len(days) > 0 {
		n, err := m.store.ImportDays(ctx, habit.ID, habit.UserID, days, m.now())
		if err != nil {
			return res, fmt.Errorf("failed to import days: %w", err)
		}
		res.inserted = n
	}

	if !habit.CompletionsMigrated {
		if err := m.store.MarkCompletionsMigrated(ctx, habit.ID); err != nil {
			return res, fmt.Errorf("failed to mark migrated: %w", err)
		}
	}

	logger.Debug("migrated legacy completions", "habit", habit.ID,
		"considered", res.considered, "inserted", res.inserted, "skipped", res.skipped)
	return res, nil
}

// MigrateAll migrates every unmigrated habit, including archived and
// soft-deleted ones. A failing habit is recorded in the report and the
// batch moves on; only listing failures or cancellation abort it.
func (m *Migrator) MigrateAll(ctx context.Context) (Report, error) {
	var report Report

	habits, err := m.store.ListHabits(ctx, models.HabitQuery{
		IncludeArchived: true,
		IncludeDeleted:  true,
		OnlyUnmigrated:  true,
	})
	if err != nil {
		return report, fmt.Errorf("failed to list unmigrated habits: %w", err)
	}

	logger.Info("starting legacy migration", "habits", len(habits))

	for _, habit := range habits {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Habits++

		res, err := m.migrate(ctx, habit)
		report.Inserted += res.inserted
		report.Skipped += res.skipped
		if err != nil {
			m.fail(&report, habit, err)
			continue
		}
		report.Migrated++

		if m.AfterHabit != nil {
			if err := m.AfterHabit(ctx, habit.ID); err != nil {
				m.fail(&report, habit, fmt.Errorf("post-migration hook: %w", err))
			}
		}
	}

	logger.Info("legacy migration finished", "habits", report.Habits, "migrated", report.Migrated,
		"inserted", report.Inserted, "skipped", report.Skipped, "errors", report.Errors)
	return report, nil
}

func (m *Migrator) fail(report *Report, habit models.Habit, err error) {
	migErr := &apperrors.MigrationError{HabitID: habit.ID, HabitName: habit.Name, Err: err}
	logger.Error("legacy migration failed", "habit", habit.ID, "name", habit.Name, "error", err)
	report.Errors++
	report.Failures = append(report.Failures, migErr)
}
