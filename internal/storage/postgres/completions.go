package postgres

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
	var completedAt sql.NullTime
	var mood string

	err := row.Scan(&r.ID, &r.HabitID, &r.UserID, &r.Date, &r.Completed, &completedAt,
		&r.Notes, &mood, &r.Value, &r.TargetValue, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.CompletionRecord{}, err
	}
	r.Mood = models.Mood(mood)
	r.CompletedAt = timePtr(completedAt)
	return r, nil
}

func (s *Store) UpsertDay(ctx context.Context, rec models.CompletionRecord) (models.CompletionRecord, error) {
	rec = storage.NormalizeRecord(rec, time.Now())
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (`+completionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (habit_id, date) DO UPDATE SET
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at,
			notes = EXCLUDED.notes,
			mood = EXCLUDED.mood,
			value = EXCLUDED.value,
			target_value = EXCLUDED.target_value,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.HabitID, rec.UserID, rec.Date, rec.Completed, nullTime(rec.CompletedAt),
		rec.Notes, string(rec.Mood), rec.Value, rec.TargetValue, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return models.CompletionRecord{}, fmt.Errorf("failed to upsert %s for habit %s: %w", rec.Date, rec.HabitID, mapError(err))
	}

	return s.GetCompletion(ctx, rec.HabitID, rec.Date)
}

func (s *Store) GetCompletion(ctx context.Context, habitID, date string) (models.CompletionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+completionColumns+" FROM habit_completions WHERE habit_id = $1 AND date = $2",
		habitID, date)
	r, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CompletionRecord{}, apperrors.NotFoundf("no completion for habit %s on %s", habitID, date)
	}
	return r, err
}

func (s *Store) ListCompleted(ctx context.Context, habitID string, r *dates.Range) ([]string, error) {
	var a args
	query := "SELECT date FROM habit_completions WHERE habit_id = " + a.add(habitID) + " AND completed"
	if r != nil {
		query += " AND date >= " + a.add(r.Start) + " AND date <= " + a.add(r.End)
	}
	query += " ORDER BY date"

	rows, err := s.db.QueryContext(ctx, query, a...)
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
		WHERE habit_id = $1 AND completed AND date >= $2 AND date <= $3
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
	var a args
	query := `
		SELECT habit_id, date, value FROM habit_completions
		WHERE completed AND date >= ` + a.add(r.Start) + ` AND date <= ` + a.add(r.End) + `
			AND habit_id IN (SELECT id FROM habits WHERE TRUE` + habitFilter(q, &a) + `)
		ORDER BY date, habit_id`
	rows, err := s.db.QueryContext(ctx, query, a...)
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
		VALUES ($1, $2, $3, $4, TRUE, $5, '', '', 1, 1, $5, $5)
		ON CONFLICT (habit_id, date) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, day := range days {
		res, err := stmt.ExecContext(ctx, uuid.New().String(), habitID, userID, day, at)
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

	var a args
	query := `
		SELECT h.id, h.name, COUNT(c.id)
		FROM (SELECT id, name FROM habits WHERE TRUE` + habitFilter(q, &a) + `) h
		LEFT JOIN habit_completions c
			ON c.habit_id = h.id AND c.completed AND c.date >= ` + a.add(start) + ` AND c.date <= ` + a.add(end) + `
		GROUP BY h.id, h.name
		ORDER BY h.name, h.id`
	rows, err := s.db.QueryContext(ctx, query, a...)
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
