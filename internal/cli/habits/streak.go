package habits

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/streak"
)

type StreakCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Top   int    `help:"Number of longest runs to show." default:"5"`
}

func (c *StreakCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	if c.Top < 1 {
		c.Top = constants.DefaultTopRuns
	}

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}
	detail, err := ctx.Service.GetStreakDetail(cctx, habit.ID, ctx.User())
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render(habit.Name))
	ctx.Printf("  Current streak: %d\n", detail.Current)
	ctx.Printf("  Longest streak: %d\n", detail.Longest)
	if detail.LastCompletedDate != "" {
		ctx.Printf("  Last completed: %s\n", detail.LastCompletedDate)
	}
	ctx.Printf("  Runs:           %d\n", len(detail.AllRuns))

	top := streak.TopN(detail.AllRuns, c.Top)
	if len(top) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(top))
	for i, r := range top {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.StartDate, r.EndDate, strconv.Itoa(r.Length)})
	}
	ctx.Println()
	ctx.Println(cli.RenderTable([]string{"#", "Start", "End", "Days"}, rows))
	return nil
}

type LogCmd struct {
	Days  int    `help:"Number of days to show." default:"14"`
	Habit string `help:"Show log for specific habit only."`
}

func (c *LogCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	if c.Days < 1 {
		c.Days = constants.DefaultLogDays
	}

	var habits []models.Habit
	if c.Habit != "" {
		h, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
		if err != nil {
			return err
		}
		habits = []models.Habit{h}
	} else {
		var err error
		habits, err = ctx.Store.ListHabits(cctx, models.Active(ctx.User()))
		if err != nil {
			return err
		}
	}
	if len(habits) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	end := ctx.Today()
	start, err := dates.AddDays(end, -(c.Days - 1))
	if err != nil {
		return err
	}
	r, err := dates.NewRange(start, end)
	if err != nil {
		return err
	}

	// A named habit may be archived, so archived history is always read
	done, err := completedByHabit(cctx, ctx, models.HabitQuery{UserID: ctx.User(), IncludeArchived: true}, r)
	if err != nil {
		return err
	}

	const nameWidth = 20
	days := r.Days()

	ctx.Printf("Habit log (last %d days):\n\n", c.Days)
	var header strings.Builder
	fmt.Fprintf(&header, "%-*s", nameWidth, "Habit")
	for _, d := range days {
		// MM/DD
		header.WriteString(" " + d[5:7] + "/" + d[8:10])
	}
	ctx.Println(header.String())
	ctx.Println(strings.Repeat("-", nameWidth+6*len(days)))

	for _, h := range habits {
		var line strings.Builder
		line.WriteString(cli.NameStyle.Render(fmt.Sprintf("%-*s", nameWidth, truncate(h.Name, nameWidth))))
		for _, d := range days {
			line.WriteString("   " + cli.DayMarker(done[h.ID][d]) + "  ")
		}
		ctx.Println(line.String())
	}
	return nil
}

// completedByHabit indexes the completed days in r of the habits selected by q
func completedByHabit(cctx context.Context, ctx *cli.Context, q models.HabitQuery, r dates.Range) (map[string]map[string]bool, error) {
	completions, err := ctx.Service.CompletionsForUser(cctx, q, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	done := make(map[string]map[string]bool)
	for _, uc := range completions {
		if done[uc.HabitID] == nil {
			done[uc.HabitID] = make(map[string]bool)
		}
		done[uc.HabitID][uc.Date] = true
	}
	return done, nil
}

func truncate(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return name
	}
	return string(runes[:width-3]) + "..."
}
