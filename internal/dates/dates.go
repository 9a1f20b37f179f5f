// Package dates handles the calendar-day strings the engine works with.
//
// Days are plain YYYY-MM-DD strings already resolved to the user's local
// day by the caller. Arithmetic on them goes through integer day numbers so
// that differences never depend on wall-clock durations or DST offsets.
package dates

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitkeep/internal/constants"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
)

// Parse parses a canonical day string. Non-canonical spellings such as
// "2024-1-5" are rejected so that lexicographic order matches date order.
func Parse(day string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, day)
	if err != nil {
		return time.Time{}, apperrors.Validationf("invalid date %q (expected YYYY-MM-DD)", day)
	}
	if t.Format(constants.DateFormat) != day {
		return time.Time{}, apperrors.Validationf("invalid date %q (expected YYYY-MM-DD)", day)
	}
	if t.Year() < constants.MinYear || t.Year() > constants.MaxYear {
		return time.Time{}, apperrors.Validationf("date %q outside supported range %d-%d", day, constants.MinYear, constants.MaxYear)
	}
	return t, nil
}

// Validate reports whether day is a canonical, in-range day string.
func Validate(day string) error {
	_, err := Parse(day)
	return err
}

// DayNumber returns the number of days since 1970-01-01 for a valid day.
func DayNumber(day string) (int, error) {
	t, err := Parse(day)
	if err != nil {
		return 0, err
	}
	return civilDays(t.Year(), int(t.Month()), t.Day()), nil
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int) string {
	return time.Date(1970, time.January, 1+n, 0, 0, 0, 0, time.UTC).Format(constants.DateFormat)
}

// civilDays counts days from the Unix epoch using the proleptic Gregorian
// calendar, without going through time.Duration.
func civilDays(y, m, d int) int {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// AddDays shifts a day string by n calendar days.
func AddDays(day string, n int) (string, error) {
	num, err := DayNumber(day)
	if err != nil {
		return "", err
	}
	return FromDayNumber(num + n), nil
}

// Between returns b - a in whole days.
func Between(a, b string) (int, error) {
	na, err := DayNumber(a)
	if err != nil {
		return 0, err
	}
	nb, err := DayNumber(b)
	if err != nil {
		return 0, err
	}
	return nb - na, nil
}

// Today returns the current day in the given location.
func Today(loc *time.Location) string {
	return time.Now().In(loc).Format(constants.DateFormat)
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, apperrors.Validationf("invalid timezone %q: %v", timezone, err)
	}
	return loc, nil
}

// TodayResolver returns a function yielding the current day in timezone.
func TodayResolver(timezone string) (func() string, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return func() string { return Today(loc) }, nil
}

// MonthRange returns the first and last day of a YYYY-MM month.
func MonthRange(month string) (start, end string, days int, err error) {
	t, err := time.Parse(constants.MonthFormat, month)
	if err != nil || t.Format(constants.MonthFormat) != month {
		return "", "", 0, apperrors.Validationf("invalid month %q (expected YYYY-MM)", month)
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start = first.Format(constants.DateFormat)
	if err := Validate(start); err != nil {
		return "", "", 0, err
	}
	return start, last.Format(constants.DateFormat), last.Day(), nil
}

// Range is an inclusive [Start, End] span of days.
type Range struct {
	Start string
	End   string
}

// NewRange validates both bounds and their order.
func NewRange(start, end string) (Range, error) {
	if err := Validate(start); err != nil {
		return Range{}, err
	}
	if err := Validate(end); err != nil {
		return Range{}, err
	}
	if end < start {
		return Range{}, apperrors.Validationf("range end %s is before start %s", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// Contains reports whether day lies within the range. Day strings are
// fixed-width, so string comparison is date comparison.
func (r Range) Contains(day string) bool {
	return day >= r.Start && day <= r.End
}

// Days lists every day of the range in order.
func (r Range) Days() []string {
	start, err := DayNumber(r.Start)
	if err != nil {
		return nil
	}
	end, err := DayNumber(r.End)
	if err != nil {
		return nil
	}
	out := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, FromDayNumber(n))
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
