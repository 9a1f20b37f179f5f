package models

import (
	"fmt"
	"time"
)

// Mood is an optional self-report attached to a completion
type Mood string

const (
	MoodNone     Mood = ""
	MoodGreat    Mood = "great"
	MoodGood     Mood = "good"
	MoodOkay     Mood = "okay"
	MoodBad      Mood = "bad"
	MoodTerrible Mood = "terrible"
)

// Valid reports whether m is one of the known moods or empty
func (m Mood) Valid() bool {
	switch m {
	case MoodNone, MoodGreat, MoodGood, MoodOkay, MoodBad, MoodTerrible:
		return true
	}
	return false
}

// CompletionRecord is one habit's entry for one calendar day
type CompletionRecord struct {
	ID          string     `json:"id"`
	HabitID     string     `json:"habit_id"`
	UserID      string     `json:"user_id"`
	Date        string     `json:"date"` // YYYY-MM-DD format
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Mood        Mood       `json:"mood,omitempty"`
	Value       float64    `json:"value"`
	TargetValue float64    `json:"target_value"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CompletionInput carries the optional metadata of a completion
type CompletionInput struct {
	Notes       string
	Mood        Mood
	Value       float64
	TargetValue float64
}

func (in CompletionInput) String() string {
	return fmt.Sprintf("value=%g/%g mood=%q", in.Value, in.TargetValue, in.Mood)
}

// UserCompletion is a completed (habit, day) pair from a cross-habit query
type UserCompletion struct {
	HabitID string  `json:"habit_id"`
	Date    string  `json:"date"`
	Value   float64 `json:"value"`
}
