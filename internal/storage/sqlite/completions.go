package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
)

const completionColumns = `id, habit_id, user_id, date, completed, completed_at,
	notes, mood, value, target_value, created_at, updated_at`

func scanCompletion(row rowScanner) (models.CompletionRecord, error) {
	var r models.CompletionRecord
	var completedAt sql.NullString
	var mood, createdAt, updatedAt string

	err := row.Scan(&r.ID, &r.HabitID, &r.UserID, &r.Date, &r.Completed, &completedAt,
		&r.Notes, &mood, &r.Value, &r.TargetValue, &createdAt, &updatedAt)
	if err != nil {
		return models.CompletionRecord{}, err
	}
	r.Mood = models.Mood(mood)

	if r.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return models.CompletionRecord{}, fmt.Errorf("failed to parse completed_at: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return models.CompletionRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return models.CompletionRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return r, nil
}

func (s *Store) UpsertDay(ctx context.Context, rec models.CompletionRecord) (models.CompletionRecord, error) {
	rec = storage.NormalizeRecord(rec, time.Now())
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (`+completionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, date) DO UPDATE SET
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			notes = excluded.notes,
			mood = excluded.mood,
			value = excluded.value,
			target_value = excluded.target_value,
			updated_at = excluded.updated_at`,
		rec.ID, rec.HabitID, rec.UserID, rec.Date, rec.Completed, formatNullTime(rec.CompletedAt),
		rec.Notes, string(rec.Mood), rec.Value, rec.TargetValue,
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return models.CompletionRecord{}, fmt.Errorf("failed to upsert %s for habit %s: %w", rec.Date, rec.HabitID, mapError(err))
	}

	return s.GetCompletion(ctx, rec.HabitID, rec.Date)
}

func (s *Store) GetCompletion(ctx context.Context, habitID, date string) (models.CompletionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+completionColumns+" FROM habit_completions WHERE habit_id = ? AND date = ?",
		habitID, date)
	r, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CompletionRecord{}, apperrors.NotFoundf("no completion for habit %s on %s", habitID, date)
	}
	return r, err
}

func (s *Store) ListCompleted(ctx context.Context, habitID string, r *dates.Range) ([]string, error) {
	query := "SELECT date FROM habit_completions WHERE habit_id = ? AND completed = 1"
	args := []interface{}{habitID}
	if r != nil {
		query += " AND date >= ? AND date <= ?"
		args = append(args, r.Start, r.End)
	}
	query += " ORDER BY date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := []string{}
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func (s *Store) ListRecords(ctx context.Context, habitID string, r dates.Range) ([]models.CompletionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+completionColumns+` FROM habit_completions
		WHERE habit_id = ? AND completed = 1 AND date >= ? AND date <= ?
		ORDER BY date`, habitID, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CompletionRecord
	for rows.Next() {
		rec, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) ListForUser(ctx context.Context, q models.HabitQuery, r dates.Range) ([]models.UserCompletion, error) {
	filter, args := habitFilter(q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT habit_id, date, value FROM habit_completions
		WHERE completed = 1 AND date >= ? AND date <= ?
			AND habit_id IN (SELECT id FROM habits WHERE 1 = 1`+filter+`)
		ORDER BY date, habit_id`,
		append([]interface{}{r.Start, r.End}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserCompletion
	for rows.Next() {
		var c models.UserCompletion
		if err := rows.Scan(&c.HabitID, &c.Date, &c.Value); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ImportDays(ctx context.Context, habitID, userID string, days []string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO habit_completions (`+completionColumns+`)
		VALUES (?, ?, ?, ?, 1, ?, '', '', ?, ?, ?, ?)
		ON CONFLICT(habit_id, date) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	stamp := at.UTC().Format(time.RFC3339)
	inserted := 0
	for _, day := range days {
		res, err := stmt.ExecContext(ctx, uuid.New().String(), habitID, userID, day, stamp,
			1.0, 1.0, stamp, stamp)
		if err != nil {
			return 0, fmt.Errorf("failed to import %s: %w", day, mapError(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) CountCompletedByMonth(ctx context.Context, q models.HabitQuery, month string) ([]models.MonthlyCount, error) {
	start, end, days, err := dates.MonthRange(month)
	if err != nil {
		return nil, err
	}

	filter, args := habitFilter(q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.name, COUNT(c.id)
		FROM (SELECT id, name FROM habits WHERE 1 = 1`+filter+`) h
		LEFT JOIN habit_completions c
			ON c.habit_id = h.id AND c.completed = 1 AND c.date >= ? AND c.date <= ?
		GROUP BY h.id, h.name
		ORDER BY h.name, h.id`, append(args, start, end)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.MonthlyCount
	for rows.Next() {
		mc := models.MonthlyCount{Month: month, DaysInMonth: days}
		if err := rows.Scan(&mc.HabitID, &mc.HabitName, &mc.Completed); err != nil {
			return nil, err
		}
		mc.Rate = storage.Rate(mc.Completed, days)
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}
