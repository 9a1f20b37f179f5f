package completion

import (
	"context"
	"sort"

	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
	"github.com/julianstephens/habitkeep/internal/streak"
)

// GetCompletedDays returns the habit's completed days as a day->true map,
// read from whichever representation is authoritative for the habit.
func (s *Service) GetCompletedDays(ctx context.Context, habitID, userID string) (map[string]bool, error) {
	habit, err := s.ownedHabit(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.completedDays(ctx, habit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(days))
	for _, d := range days {
		out[d] = true
	}
	return out, nil
}

// CompletionsForHabit lists completed records of one habit within [start, end]
func (s *Service) CompletionsForHabit(ctx context.Context, habitID, userID, start, end string) ([]models.CompletionRecord, error) {
	r, err := dates.NewRange(start, end)
	if err != nil {
		return nil, err
	}
	habit, err := s.ownedHabit(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	if habit.CompletionsMigrated {
		return s.store.ListRecords(ctx, habit.ID, r)
	}
	return legacyRecords(habit, r), nil
}

// CompletionsForUser lists completed (habit, day) pairs within [start, end]
// across the habits selected by q. q.UserID is required and q decides
// whether archived and deleted habits take part, whichever representation
// their history is stored in.
func (s *Service) CompletionsForUser(ctx context.Context, q models.HabitQuery, start, end string) ([]models.UserCompletion, error) {
	r, err := dates.NewRange(start, end)
	if err != nil {
		return nil, err
	}
	pending, err := s.pendingHabits(ctx, q)
	if err != nil {
		return nil, err
	}
	logged, err := s.store.ListForUser(ctx, q, r)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserCompletion, 0, len(logged))
	for _, c := range logged {
		if _, ok := pending[c.HabitID]; !ok {
			out = append(out, c)
		}
	}
	for _, h := range pending {
		for _, rec := range legacyRecords(h, r) {
			out = append(out, models.UserCompletion{HabitID: h.ID, Date: rec.Date, Value: rec.Value})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].HabitID < out[j].HabitID
	})
	return out, nil
}

// GetStreakDetail derives runs and top runs on demand. Nothing is persisted.
func (s *Service) GetStreakDetail(ctx context.Context, habitID, userID string) (models.StreakDetail, error) {
	habit, err := s.ownedHabit(ctx, habitID, userID)
	if err != nil {
		return models.StreakDetail{}, err
	}
	days, err := s.completedDays(ctx, habit)
	if err != nil {
		return models.StreakDetail{}, err
	}
	return streak.Compute(days, s.today(), habit.Streak.Longest)
}

// MonthlyCounts reports per-habit completion totals for a YYYY-MM month over
// the habits selected by q.
func (s *Service) MonthlyCounts(ctx context.Context, q models.HabitQuery, month string) ([]models.MonthlyCount, error) {
	start, end, _, err := dates.MonthRange(month)
	if err != nil {
		return nil, err
	}
	pending, err := s.pendingHabits(ctx, q)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountCompletedByMonth(ctx, q, month)
	if err != nil {
		return nil, err
	}

	r := dates.Range{Start: start, End: end}
	for i := range counts {
		if h, ok := pending[counts[i].HabitID]; ok {
			counts[i].Completed = len(legacyRecords(h, r))
			counts[i].Rate = storage.Rate(counts[i].Completed, counts[i].DaysInMonth)
		}
	}
	return counts, nil
}

// Leaderboard ranks the user's active habits by their cached streaks. A
// cached current streak whose last day is older than yesterday counts as 0.
func (s *Service) Leaderboard(ctx context.Context, userID string) ([]models.LeaderboardEntry, error) {
	habits, err := s.store.ListHabits(ctx, models.Active(userID))
	if err != nil {
		return nil, err
	}

	today := s.today()
	entries := make([]models.LeaderboardEntry, 0, len(habits))
	for _, h := range habits {
		entries = append(entries, models.LeaderboardEntry{
			HabitID:   h.ID,
			HabitName: h.Name,
			Current:   h.Streak.EffectiveCurrent(today),
			Longest:   h.Streak.Longest,
			LastDate:  h.Streak.LastCompletedDate,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Current != b.Current {
			return a.Current > b.Current
		}
		if a.Longest != b.Longest {
			return a.Longest > b.Longest
		}
		return a.HabitName < b.HabitName
	})
	return entries, nil
}

// pendingHabits returns the unmigrated habits selected by q, keyed by id.
// Their history is read from the embedded map, never from the log.
func (s *Service) pendingHabits(ctx context.Context, q models.HabitQuery) (map[string]models.Habit, error) {
	if q.UserID == "" {
		return nil, apperrors.Validationf("user id is required")
	}
	q.OnlyUnmigrated = true
	habits, err := s.store.ListHabits(ctx, q)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		pending[h.ID] = h
	}
	return pending, nil
}

// legacyRecords synthesizes completed records from an unmigrated habit's
// embedded map, restricted to r.
func legacyRecords(habit models.Habit, r dates.Range) []models.CompletionRecord {
	days := habit.LegacyCompletedDays()
	sort.Strings(days)

	var out []models.CompletionRecord
	for _, d := range days {
		if dates.Validate(d) != nil || !r.Contains(d) {
			continue
		}
		out = append(out, models.CompletionRecord{
			HabitID:     habit.ID,
			UserID:      habit.UserID,
			Date:        d,
			Completed:   true,
			Value:       constants.DefaultValue,
			TargetValue: constants.DefaultTargetValue,
		})
	}
	return out
}
