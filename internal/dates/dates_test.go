package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/julianstephens/habitkeep/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		day     string
		wantErr bool
	}{
		{name: "canonical", day: "2024-01-05"},
		{name: "leap day", day: "2024-02-29"},
		{name: "non-leap feb 29", day: "2023-02-29", wantErr: true},
		{name: "missing zero padding", day: "2024-1-5", wantErr: true},
		{name: "timestamp", day: "2024-01-05T10:00:00Z", wantErr: true},
		{name: "empty", day: "", wantErr: true},
		{name: "before range", day: "1969-12-31", wantErr: true},
		{name: "after range", day: "2200-01-01", wantErr: true},
		{name: "month 13", day: "2024-13-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.day)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.day, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Parse(%q) error should wrap ErrValidation, got %v", tt.day, err)
			}
		})
	}
}

func TestDayNumberRoundTrip(t *testing.T) {
	n, err := DayNumber("1970-01-01")
	if err != nil {
		t.Fatalf("DayNumber failed: %v", err)
	}
	if n != 0 {
		t.Errorf("epoch day number = %d, want 0", n)
	}

	// Walk several years across leap days and DST transitions
	start := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3*366; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		num, err := DayNumber(day)
		if err != nil {
			t.Fatalf("DayNumber(%q) failed: %v", day, err)
		}
		if got := FromDayNumber(num); got != day {
			t.Fatalf("FromDayNumber(DayNumber(%q)) = %q", day, got)
		}
		if want := int(start.AddDate(0, 0, i).Unix() / 86400); num != want {
			t.Fatalf("DayNumber(%q) = %d, want %d", day, num, want)
		}
	}
}

func TestBetweenAndAddDays(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-01", "2024-01-02", 1},
		{"2024-02-28", "2024-03-01", 2},
		{"2023-02-28", "2023-03-01", 1},
		{"2024-03-09", "2024-03-11", 2}, // US DST change
		{"2024-12-31", "2025-01-01", 1},
		{"2024-01-05", "2024-01-01", -4},
	}
	for _, tt := range tests {
		got, err := Between(tt.a, tt.b)
		if err != nil {
			t.Fatalf("Between(%s, %s) failed: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("Between(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		shifted, err := AddDays(tt.a, tt.want)
		if err != nil {
			t.Fatalf("AddDays failed: %v", err)
		}
		if shifted != tt.b {
			t.Errorf("AddDays(%s, %d) = %s, want %s", tt.a, tt.want, shifted, tt.b)
		}
	}
}

func TestMonthRange(t *testing.T) {
	start, end, days, err := MonthRange("2024-02")
	if err != nil {
		t.Fatalf("MonthRange failed: %v", err)
	}
	if start != "2024-02-01" || end != "2024-02-29" || days != 29 {
		t.Errorf("MonthRange(2024-02) = %s, %s, %d", start, end, days)
	}

	if _, _, _, err := MonthRange("2024-2"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for non-canonical month, got %v", err)
	}
}

func TestRange(t *testing.T) {
	r, err := NewRange("2024-01-30", "2024-02-02")
	if err != nil {
		t.Fatalf("NewRange failed: %v", err)
	}
	want := []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}
	if diff := cmp.Diff(want, r.Days()); diff != "" {
		t.Errorf("Days() mismatch (-want +got):\n%s", diff)
	}
	if !r.Contains("2024-02-01") || r.Contains("2024-02-03") {
		t.Error("Contains() returned wrong result")
	}

	if _, err := NewRange("2024-02-02", "2024-01-30"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil || loc != time.Local {
		t.Errorf("LoadLocation(\"\") = %v, %v", loc, err)
	}
	if _, err := LoadLocation("Not/AZone"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	today, err := TodayResolver("UTC")
	if err != nil {
		t.Fatalf("TodayResolver failed: %v", err)
	}
	if err := Validate(today()); err != nil {
		t.Errorf("resolver produced invalid day: %v", err)
	}
}
