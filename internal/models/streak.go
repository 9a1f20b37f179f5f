package models

import "github.com/julianstephens/habitkeep/internal/dates"

// StreakState is the derived streak summary cached on a habit
type StreakState struct {
	Current           int    `json:"current"`
	Longest           int    `json:"longest"`
	LastCompletedDate string `json:"last_completed_date,omitempty"`
}

// EffectiveCurrent returns the cached current streak, or 0 once the last
// completion has fallen out of the grace window relative to today. It does
// not re-derive anything from the log.
func (s StreakState) EffectiveCurrent(today string) int {
	if s.Current == 0 || s.LastCompletedDate == "" {
		return 0
	}
	gap, err := dates.Between(s.LastCompletedDate, today)
	if err != nil || gap > 1 {
		return 0
	}
	return s.Current
}

// Run is a maximal sequence of consecutive completed days
type Run struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Length    int    `json:"length"`
}

// StreakDetail is the full output of a streak computation
type StreakDetail struct {
	StreakState
	AllRuns []Run `json:"all_runs"`
	TopRuns []Run `json:"top_runs"`
}
