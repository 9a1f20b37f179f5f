package models

// MonthlyCount is one habit's completion total for a calendar month
type MonthlyCount struct {
	HabitID     string  `json:"habit_id"`
	HabitName   string  `json:"habit_name"`
	Month       string  `json:"month"`
	Completed   int     `json:"completed"`
	DaysInMonth int     `json:"days_in_month"`
	Rate        float64 `json:"completion_rate"`
}

// LeaderboardEntry ranks a habit by its cached streak
type LeaderboardEntry struct {
	HabitID   string `json:"habit_id"`
	HabitName string `json:"habit_name"`
	Current   int    `json:"current"`
	Longest   int    `json:"longest"`
	LastDate  string `json:"last_completed_date,omitempty"`
}
