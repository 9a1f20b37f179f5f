// Package streak derives streak statistics from a set of completed days.
//
// Everything here is pure: callers pass the completed days, the day that
// counts as "today", and the previously stored longest streak. Nothing reads
// the clock or touches storage.
package streak

import (
	"sort"

	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/models"
)

// Compute returns runs, current, longest and last-completed for the given
// completed days. Longest never drops below priorLongest.
func Compute(days []string, today string, priorLongest int) (models.StreakDetail, error) {
	todayNum, err := dates.DayNumber(today)
	if err != nil {
		return models.StreakDetail{}, err
	}

	runs, err := Segment(days)
	if err != nil {
		return models.StreakDetail{}, err
	}

	detail := models.StreakDetail{
		StreakState: models.StreakState{Longest: priorLongest},
		AllRuns:     runs,
		TopRuns:     Rank(runs),
	}
	if detail.Longest < 0 {
		detail.Longest = 0
	}
	if len(runs) == 0 {
		return detail, nil
	}

	last := runs[len(runs)-1]
	detail.LastCompletedDate = last.EndDate

	lastNum, err := dates.DayNumber(last.EndDate)
	if err != nil {
		return models.StreakDetail{}, err
	}
	// Grace window: a run ending yesterday is still current
	if gap := todayNum - lastNum; gap == 0 || gap == 1 {
		detail.Current = last.Length
	}

	for _, r := range runs {
		if r.Length > detail.Longest {
			detail.Longest = r.Length
		}
	}

	return detail, nil
}

// Segment deduplicates and sorts days, then splits them into maximal runs of
// consecutive days in chronological order.
func Segment(days []string) ([]models.Run, error) {
	nums, err := uniqueDayNumbers(days)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return []models.Run{}, nil
	}

	var runs []models.Run
	start := nums[0]
	prev := nums[0]
	for _, n := range nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		runs = append(runs, newRun(start, prev))
		start, prev = n, n
	}
	runs = append(runs, newRun(start, prev))

	return runs, nil
}

// Flatten expands runs back into the individual days they cover.
func Flatten(runs []models.Run) []string {
	var out []string
	for _, r := range runs {
		start, err := dates.DayNumber(r.StartDate)
		if err != nil {
			continue
		}
		for i := 0; i < r.Length; i++ {
			out = append(out, dates.FromDayNumber(start+i))
		}
	}
	return out
}

// Rank returns a copy of runs ordered by length, longest first. Ties go to
// the run that ended more recently.
func Rank(runs []models.Run) []models.Run {
	ranked := make([]models.Run, len(runs))
	copy(ranked, runs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Length != ranked[j].Length {
			return ranked[i].Length > ranked[j].Length
		}
		return ranked[i].EndDate > ranked[j].EndDate
	})
	return ranked
}

// TopN returns at most n of the ranked runs.
func TopN(runs []models.Run, n int) []models.Run {
	ranked := Rank(runs)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func uniqueDayNumbers(days []string) ([]int, error) {
	seen := make(map[int]struct{}, len(days))
	nums := make([]int, 0, len(days))
	for _, d := range days {
		n, err := dates.DayNumber(d)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func newRun(start, end int) models.Run {
	return models.Run{
		StartDate: dates.FromDayNumber(start),
		EndDate:   dates.FromDayNumber(end),
		Length:    end - start + 1,
	}
}
