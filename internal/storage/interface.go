package storage

import (
	"context"
	"time"

	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/models"
)

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	// Habits
	AddHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, id string, q models.HabitQuery) (models.Habit, error)
	GetHabitByName(ctx context.Context, name string, q models.HabitQuery) (models.Habit, error)
	ListHabits(ctx context.Context, q models.HabitQuery) ([]models.Habit, error)
	ArchiveHabit(ctx context.Context, id string) error
	UnarchiveHabit(ctx context.Context, id string) error
	DeleteHabit(ctx context.Context, id string) error
	RestoreHabit(ctx context.Context, id string) error
	// PurgeHabit removes the habit and its whole completion log.
	PurgeHabit(ctx context.Context, id string) error
	// SaveStreakState writes the cached streak only if the habit is still at
	// expectedVersion, and bumps the version. A stale version yields ErrConflict.
	SaveStreakState(ctx context.Context, habitID string, state models.StreakState, expectedVersion int) error
	MarkCompletionsMigrated(ctx context.Context, habitID string) error

	// Completion log
	UpsertDay(ctx context.Context, rec models.CompletionRecord) (models.CompletionRecord, error)
	GetCompletion(ctx context.Context, habitID, date string) (models.CompletionRecord, error)
	// ListCompleted returns completed days in ascending order, optionally
	// bounded by an inclusive range.
	ListCompleted(ctx context.Context, habitID string, r *dates.Range) ([]string, error)
	ListRecords(ctx context.Context, habitID string, r dates.Range) ([]models.CompletionRecord, error)
	// ListForUser returns completed days in r across the habits selected by
	// q. Archived and deleted habits are only included when q asks for them.
	ListForUser(ctx context.Context, q models.HabitQuery, r dates.Range) ([]models.UserCompletion, error)
	// ImportDays inserts completed rows for days that have no row yet and
	// reports how many were inserted.
	ImportDays(ctx context.Context, habitID, userID string, days []string, at time.Time) (int, error)
	CountCompletedByMonth(ctx context.Context, q models.HabitQuery, month string) ([]models.MonthlyCount, error)

	// Utils
	GetConfigPath() string
}
