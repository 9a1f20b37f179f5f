package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
)

const habitColumns = `id, user_id, name, goal_days, created_at, archived_at, deleted_at,
	streak_current, streak_longest, streak_last_date, streak_version,
	legacy_days, completions_migrated`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var createdAt string
	var archivedAt, deletedAt, lastDate, legacy sql.NullString

	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.GoalDays, &createdAt, &archivedAt, &deletedAt,
		&h.Streak.Current, &h.Streak.Longest, &lastDate, &h.StreakVersion,
		&legacy, &h.CompletionsMigrated)
	if err != nil {
		return models.Habit{}, err
	}

	h.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if h.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse archived_at: %w", err)
	}
	if h.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return models.Habit{}, fmt.Errorf("failed to parse deleted_at: %w", err)
	}
	h.Streak.LastCompletedDate = lastDate.String
	if h.LegacyDays, err = storage.DecodeLegacyDays(legacy); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// habitFilter turns the explicit query flags into a WHERE fragment
func habitFilter(q models.HabitQuery) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if q.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, q.UserID)
	}
	if !q.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}
	if !q.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if q.OnlyUnmigrated {
		clauses = append(clauses, "completions_migrated = 0")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func (s *Store) AddHabit(ctx context.Context, habit models.Habit) error {
	legacy, err := storage.EncodeLegacyDays(habit.LegacyDays)
	if err != nil {
		return err
	}
	if habit.CreatedAt.IsZero() {
		habit.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		habit.ID, habit.UserID, habit.Name, habit.GoalDays,
		habit.CreatedAt.UTC().Format(time.RFC3339),
		formatNullTime(habit.ArchivedAt), formatNullTime(habit.DeletedAt),
		habit.Streak.Current, habit.Streak.Longest, nullString(habit.Streak.LastCompletedDate),
		habit.StreakVersion, legacy, habit.CompletionsMigrated)
	if err != nil {
		return fmt.Errorf("failed to add habit %q: %w", habit.Name, mapError(err))
	}
	return nil
}

func (s *Store) GetHabit(ctx context.Context, id string, q models.HabitQuery) (models.Habit, error) {
	filter, args := habitFilter(q)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ?"+filter,
		append([]interface{}{id}, args...)...)

	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.NotFoundf("habit %s", id)
	}
	return h, err
}

func (s *Store) GetHabitByName(ctx context.Context, name string, q models.HabitQuery) (models.Habit, error) {
	filter, args := habitFilter(q)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE name = ?"+filter+" ORDER BY deleted_at IS NOT NULL, created_at DESC LIMIT 1",
		append([]interface{}{name}, args...)...)

	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.NotFoundf("habit %q", name)
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, q models.HabitQuery) ([]models.Habit, error) {
	filter, args := habitFilter(q)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE 1 = 1"+filter+" ORDER BY name, id",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// setHabitColumn updates a single nullable timestamp column on a habit
func (s *Store) setHabitColumn(ctx context.Context, id, column string, value sql.NullString) error {
	res, err := s.db.ExecContext(ctx, "UPDATE habits SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFoundf("habit %s", id)
	}
	return nil
}

func (s *Store) ArchiveHabit(ctx context.Context, id string) error {
	now := time.Now()
	return s.setHabitColumn(ctx, id, "archived_at", formatNullTime(&now))
}

func (s *Store) UnarchiveHabit(ctx context.Context, id string) error {
	return s.setHabitColumn(ctx, id, "archived_at", sql.NullString{})
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	now := time.Now()
	return s.setHabitColumn(ctx, id, "deleted_at", formatNullTime(&now))
}

func (s *Store) RestoreHabit(ctx context.Context, id string) error {
	return s.setHabitColumn(ctx, id, "deleted_at", sql.NullString{})
}

func (s *Store) PurgeHabit(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM habit_completions WHERE habit_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete completions: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFoundf("habit %s", id)
	}
	return tx.Commit()
}

func (s *Store) SaveStreakState(ctx context.Context, habitID string, state models.StreakState, expectedVersion int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE habits
		SET streak_current = ?, streak_longest = ?, streak_last_date = ?, streak_version = streak_version + 1
		WHERE id = ? AND streak_version = ?`,
		state.Current, state.Longest, nullString(state.LastCompletedDate), habitID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habits WHERE id = ?", habitID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return apperrors.NotFoundf("habit %s", habitID)
	}
	return fmt.Errorf("%w: streak state of habit %s changed since version %d", apperrors.ErrConflict, habitID, expectedVersion)
}

func (s *Store) MarkCompletionsMigrated(ctx context.Context, habitID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE habits SET completions_migrated = 1 WHERE id = ?", habitID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFoundf("habit %s", habitID)
	}
	return nil
}
