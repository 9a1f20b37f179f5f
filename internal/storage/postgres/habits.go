package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
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
	var archivedAt, deletedAt sql.NullTime
	var lastDate, legacy sql.NullString

	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.GoalDays, &h.CreatedAt, &archivedAt, &deletedAt,
		&h.Streak.Current, &h.Streak.Longest, &lastDate, &h.StreakVersion,
		&legacy, &h.CompletionsMigrated)
	if err != nil {
		return models.Habit{}, err
	}

	h.ArchivedAt = timePtr(archivedAt)
	h.DeletedAt = timePtr(deletedAt)
	h.Streak.LastCompletedDate = lastDate.String
	if h.LegacyDays, err = storage.DecodeLegacyDays(legacy); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// args accumulates positional parameters and hands out $n markers
type args []interface{}

func (a *args) add(v interface{}) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func habitFilter(q models.HabitQuery, a *args) string {
	var clauses []string
	if q.UserID != "" {
		clauses = append(clauses, "user_id = "+a.add(q.UserID))
	}
	if !q.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}
	if !q.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if q.OnlyUnmigrated {
		clauses = append(clauses, "NOT completions_migrated")
	}
	if len(clauses) == 0 {
		return ""
	}
	return " AND " + strings.Join(clauses, " AND ")
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		habit.ID, habit.UserID, habit.Name, habit.GoalDays, habit.CreatedAt,
		nullTime(habit.ArchivedAt), nullTime(habit.DeletedAt),
		habit.Streak.Current, habit.Streak.Longest, nullString(habit.Streak.LastCompletedDate),
		habit.StreakVersion, legacy, habit.CompletionsMigrated)
	if err != nil {
		return fmt.Errorf("failed to add habit %q: %w", habit.Name, mapError(err))
	}
	return nil
}

func (s *Store) GetHabit(ctx context.Context, id string, q models.HabitQuery) (models.Habit, error) {
	var a args
	query := "SELECT " + habitColumns + " FROM habits WHERE id = " + a.add(id)
	query += habitFilter(q, &a)

	h, err := scanHabit(s.db.QueryRowContext(ctx, query, a...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.NotFoundf("habit %s", id)
	}
	return h, err
}

func (s *Store) GetHabitByName(ctx context.Context, name string, q models.HabitQuery) (models.Habit, error) {
	var a args
	query := "SELECT " + habitColumns + " FROM habits WHERE name = " + a.add(name)
	query += habitFilter(q, &a)
	query += " ORDER BY deleted_at IS NOT NULL, created_at DESC LIMIT 1"

	h, err := scanHabit(s.db.QueryRowContext(ctx, query, a...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, apperrors.NotFoundf("habit %q", name)
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, q models.HabitQuery) ([]models.Habit, error) {
	var a args
	query := "SELECT " + habitColumns + " FROM habits WHERE TRUE" + habitFilter(q, &a) + " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, a...)
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

func (s *Store) setHabitColumn(ctx context.Context, id, column string, value sql.NullTime) error {
	res, err := s.db.ExecContext(ctx, "UPDATE habits SET "+column+" = $1 WHERE id = $2", value, id)
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
	return s.setHabitColumn(ctx, id, "archived_at", sql.NullTime{Time: time.Now(), Valid: true})
}

func (s *Store) UnarchiveHabit(ctx context.Context, id string) error {
	return s.setHabitColumn(ctx, id, "archived_at", sql.NullTime{})
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return s.setHabitColumn(ctx, id, "deleted_at", sql.NullTime{Time: time.Now(), Valid: true})
}

func (s *Store) RestoreHabit(ctx context.Context, id string) error {
	return s.setHabitColumn(ctx, id, "deleted_at", sql.NullTime{})
}

func (s *Store) PurgeHabit(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM habit_completions WHERE habit_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete completions: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE id = $1", id)
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
		SET streak_current = $1, streak_longest = $2, streak_last_date = $3, streak_version = streak_version + 1
		WHERE id = $4 AND streak_version = $5`,
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

	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM habits WHERE id = $1)", habitID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFoundf("habit %s", habitID)
	}
	return fmt.Errorf("%w: streak state of habit %s changed since version %d", apperrors.ErrConflict, habitID, expectedVersion)
}

func (s *Store) MarkCompletionsMigrated(ctx context.Context, habitID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE habits SET completions_migrated = TRUE WHERE id = $1", habitID)
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
