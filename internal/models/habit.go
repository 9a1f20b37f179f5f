package models

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/habitkeep/internal/constants"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
)

// Habit is the aggregate that owns a completion log and caches its streak state
type Habit struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	GoalDays   int        `json:"goal_days"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`

	Streak        StreakState `json:"streaks"`
	StreakVersion int         `json:"-"`

	// LegacyDays is the embedded day->done map written before the completion
	// log existed. It is read until CompletionsMigrated is set and never cleared.
	LegacyDays          map[string]bool `json:"completed_days,omitempty"`
	CompletionsMigrated bool            `json:"completions_migrated"`
}

// LegacyCompletedDays returns the days marked true in the embedded map
func (h Habit) LegacyCompletedDays() []string {
	days := make([]string, 0, len(h.LegacyDays))
	for day, done := range h.LegacyDays {
		if done {
			days = append(days, day)
		}
	}
	return days
}

// HabitQuery selects habits. Every read states its soft-delete and archive
// handling explicitly; there is no implicit filtering.
type HabitQuery struct {
	UserID          string
	IncludeArchived bool
	IncludeDeleted  bool
	OnlyUnmigrated  bool
}

// Active returns a query for a user's live habits
func Active(userID string) HabitQuery {
	return HabitQuery{UserID: userID}
}

// Validate checks the fields a caller supplies when creating a habit
func (h Habit) Validate() error {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return apperrors.Validationf("habit name is required")
	}
	if utf8.RuneCountInString(name) > constants.MaxHabitNameLength {
		return apperrors.Validationf("habit name cannot exceed %d characters", constants.MaxHabitNameLength)
	}
	if h.GoalDays < constants.MinGoalDays || h.GoalDays > constants.MaxGoalDays {
		return apperrors.Validationf("goal days must be between %d and %d", constants.MinGoalDays, constants.MaxGoalDays)
	}
	if h.UserID == "" {
		return apperrors.Validationf("habit must belong to a user")
	}
	return nil
}

// Progress is completed days as a percentage of the goal, capped at 100
func (h Habit) Progress(completed int) int {
	if h.GoalDays <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(float64(completed) / float64(h.GoalDays) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}
