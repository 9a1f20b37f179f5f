// Package completion is the single writer of the completion log. Every
// mutation goes through Recompute, which derives the cached streak from the
// full log.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/legacy"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
	"github.com/julianstephens/habitkeep/internal/streak"
)

type Service struct {
	store    storage.Provider
	migrator *legacy.Migrator
	today    func() string
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the timestamp source used for CompletedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a service resolving "today" through today
func NewService(store storage.Provider, today func() string, opts ...Option) *Service {
	s := &Service{
		store:    store,
		migrator: legacy.NewMigrator(store),
		today:    today,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrator returns a legacy migrator whose AfterHabit hook recomputes streaks
func (s *Service) Migrator() *legacy.Migrator {
	m := legacy.NewMigrator(s.store)
	m.AfterHabit = func(ctx context.Context, habitID string) error {
		_, err := s.Recompute(ctx, habitID)
		return err
	}
	return m
}

// Toggle flips the completion state of one day and returns the stored record
// together with the recomputed streak.
func (s *Service) Toggle(ctx context.Context, habitID, userID, date string) (models.CompletionRecord, models.StreakState, error) {
	if err := s.validateDay(date); err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}
	habit, err := s.writableHabit(ctx, habitID, userID)
	if err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}

	rec, err := s.write(ctx, habit, date, func(cur models.CompletionRecord) models.CompletionRecord {
		cur.Completed = !cur.Completed
		if cur.Completed {
			now := s.now()
			cur.CompletedAt = &now
		} else {
			cur.CompletedAt = nil
		}
		return cur
	})
	if err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}

	state, err := s.Recompute(ctx, habit.ID)
	if err != nil {
		return rec, models.StreakState{}, err
	}

	logger.Info("toggled day", "habit", habit.ID, "date", date, "completed", rec.Completed, "current", state.Current)
	return rec, state, nil
}

// Mark records a completed day with metadata, replacing any previous metadata
func (s *Service) Mark(ctx context.Context, habitID, userID, date string, in models.CompletionInput) (models.CompletionRecord, models.StreakState, error) {
	if err := s.validateDay(date); err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}
	if err := validateInput(in); err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}
	habit, err := s.writableHabit(ctx, habitID, userID)
	if err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}

	rec, err := s.write(ctx, habit, date, func(cur models.CompletionRecord) models.CompletionRecord {
		if !cur.Completed || cur.CompletedAt == nil {
			now := s.now()
			cur.CompletedAt = &now
		}
		cur.Completed = true
		cur.Notes = in.Notes
		cur.Mood = in.Mood
		cur.Value = in.Value
		cur.TargetValue = in.TargetValue
		return cur
	})
	if err != nil {
		return models.CompletionRecord{}, models.StreakState{}, err
	}

	state, err := s.Recompute(ctx, habit.ID)
	if err != nil {
		return rec, models.StreakState{}, err
	}

	logger.Info("marked day", "habit", habit.ID, "date", date, "input", in.String())
	return rec, state, nil
}

// Recompute derives the streak state from the habit's full history and
// persists it under the optimistic version check. A concurrent writer causes
// a reload and another attempt, up to MaxStreakRetries.
func (s *Service) Recompute(ctx context.Context, habitID string) (models.StreakState, error) {
	for attempt := 1; attempt <= constants.MaxStreakRetries; attempt++ {
		habit, err := s.store.GetHabit(ctx, habitID, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true})
		if err != nil {
			return models.StreakState{}, err
		}
		days, err := s.completedDays(ctx, habit)
		if err != nil {
			return models.StreakState{}, err
		}
		detail, err := streak.Compute(days, s.today(), habit.Streak.Longest)
		if err != nil {
			return models.StreakState{}, err
		}

		err = s.store.SaveStreakState(ctx, habitID, detail.StreakState, habit.StreakVersion)
		if err == nil {
			return detail.StreakState, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return models.StreakState{}, fmt.Errorf("failed to save streak state: %w", err)
		}
		logger.Debug("streak version conflict", "habit", habitID, "attempt", attempt)
	}
	return models.StreakState{}, fmt.Errorf("%w: streak of habit %s kept changing after %d attempts",
		apperrors.ErrConflict, habitID, constants.MaxStreakRetries)
}

// write applies mutate to the current record for date (a fresh un-completed
// record when none exists) and upserts the result. A storage conflict is
// retried once with a fresh read.
func (s *Service) write(ctx context.Context, habit models.Habit, date string, mutate func(models.CompletionRecord) models.CompletionRecord) (models.CompletionRecord, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		cur, err := s.store.GetCompletion(ctx, habit.ID, date)
		if errors.Is(err, apperrors.ErrNotFound) {
			cur = models.CompletionRecord{
				HabitID:     habit.ID,
				UserID:      habit.UserID,
				Date:        date,
				Value:       constants.DefaultValue,
				TargetValue: constants.DefaultTargetValue,
			}
		} else if err != nil {
			return models.CompletionRecord{}, err
		}

		rec, err := s.store.UpsertDay(ctx, mutate(cur))
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return models.CompletionRecord{}, err
		}
		logger.Warn("completion write conflict, retrying", "habit", habit.ID, "date", date)
		lastErr = err
	}
	return models.CompletionRecord{}, lastErr
}

// writableHabit loads a caller-owned, non-deleted habit and migrates its
// embedded map first so writes only ever land in the log.
func (s *Service) writableHabit(ctx context.Context, habitID, userID string) (models.Habit, error) {
	habit, err := s.ownedHabit(ctx, habitID, userID)
	if err != nil {
		return models.Habit{}, err
	}
	if habit.CompletionsMigrated {
		return habit, nil
	}

	n, err := s.migrator.MigrateHabit(ctx, habit)
	if err != nil {
		return models.Habit{}, &apperrors.MigrationError{HabitID: habit.ID, HabitName: habit.Name, Err: err}
	}
	logger.Info("migrated habit before write", "habit", habit.ID, "days", n)
	habit.CompletionsMigrated = true
	return habit, nil
}

// ownedHabit loads a habit the caller owns. Archived habits are included,
// soft-deleted ones are not.
func (s *Service) ownedHabit(ctx context.Context, habitID, userID string) (models.Habit, error) {
	if userID == "" {
		return models.Habit{}, apperrors.Validationf("user id is required")
	}
	return s.store.GetHabit(ctx, habitID, models.HabitQuery{UserID: userID, IncludeArchived: true})
}

// completedDays reads from the log once the habit is migrated and from the
// embedded map before that. Malformed legacy keys are ignored.
func (s *Service) completedDays(ctx context.Context, habit models.Habit) ([]string, error) {
	if habit.CompletionsMigrated {
		return s.store.ListCompleted(ctx, habit.ID, nil)
	}
	days := []string{}
	for _, day := range habit.LegacyCompletedDays() {
		if dates.Validate(day) == nil {
			days = append(days, day)
		}
	}
	return days, nil
}

func (s *Service) validateDay(date string) error {
	if err := dates.Validate(date); err != nil {
		return err
	}
	today := s.today()
	ahead, err := dates.Between(today, date)
	if err != nil {
		return err
	}
	// Days after today are out of range
	if ahead > 0 {
		return apperrors.Validationf("%s is after today (%s)", date, today)
	}
	return nil
}

func validateInput(in models.CompletionInput) error {
	if utf8.RuneCountInString(in.Notes) > constants.MaxNotesLength {
		return apperrors.Validationf("notes cannot exceed %d characters", constants.MaxNotesLength)
	}
	if !in.Mood.Valid() {
		return apperrors.Validationf("unknown mood %q", in.Mood)
	}
	for _, v := range []float64{in.Value, in.TargetValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Validationf("value and target must be finite numbers")
		}
		if v < 0 {
			return apperrors.Validationf("value and target must not be negative")
		}
	}
	return nil
}
