package habits

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/models"
)

type ToggleCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Date  string `help:"Day in YYYY-MM-DD format (default: today)."`
}

func (c *ToggleCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}

	day := ctx.Day(c.Date)
	rec, state, err := ctx.Service.Toggle(cctx, habit.ID, ctx.User(), day)
	if err != nil {
		return err
	}

	if rec.Completed {
		ctx.Printf("%s Marked %s for %s\n", cli.SuccessStyle.Render("✓"), habit.Name, day)
	} else {
		ctx.Printf("Unmarked %s for %s\n", habit.Name, day)
	}
	printState(ctx, state)
	return nil
}

type MarkCmd struct {
	Habit  string  `arg:"" help:"Habit name or id."`
	Date   string  `help:"Day in YYYY-MM-DD format (default: today)."`
	Notes  string  `help:"Free-form note for the day."`
	Mood   string  `help:"Mood for the day." enum:",great,good,okay,bad,terrible" default:""`
	Value  float64 `help:"Amount achieved." default:"1"`
	Target float64 `help:"Amount aimed for." default:"1"`
}

func (c *MarkCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}

	day := ctx.Day(c.Date)
	in := models.CompletionInput{
		Notes:       c.Notes,
		Mood:        models.Mood(c.Mood),
		Value:       c.Value,
		TargetValue: c.Target,
	}
	rec, state, err := ctx.Service.Mark(cctx, habit.ID, ctx.User(), day, in)
	if err != nil {
		return err
	}

	ctx.Printf("%s Marked %s for %s (%g/%g)\n", cli.SuccessStyle.Render("✓"), habit.Name, day, rec.Value, rec.TargetValue)
	printState(ctx, state)
	return nil
}

func printState(ctx *cli.Context, state models.StreakState) {
	ctx.Printf("  Current streak: %d  Longest: %d\n", state.Current, state.Longest)
}

type DaysCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	From  string `help:"First day (YYYY-MM-DD). With --to, shows the records in the range."`
	To    string `help:"Last day (YYYY-MM-DD), default today."`
}

func (c *DaysCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}

	if c.From == "" {
		days, err := ctx.Service.GetCompletedDays(cctx, habit.ID, ctx.User())
		if err != nil {
			return err
		}
		if len(days) == 0 {
			ctx.Printf("No completed days for %s.\n", habit.Name)
			return nil
		}
		sorted := make([]string, 0, len(days))
		for d := range days {
			sorted = append(sorted, d)
		}
		sort.Strings(sorted)
		ctx.Println(cli.TitleStyle.Render(fmt.Sprintf("%s: %d completed day(s)", habit.Name, len(sorted))))
		for _, d := range sorted {
			ctx.Println(d)
		}
		return nil
	}

	records, err := ctx.Service.CompletionsForHabit(cctx, habit.ID, ctx.User(), c.From, ctx.Day(c.To))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ctx.Printf("No completed days for %s between %s and %s.\n", habit.Name, c.From, ctx.Day(c.To))
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Date,
			fmt.Sprintf("%g/%g", rec.Value, rec.TargetValue),
			string(rec.Mood),
			strings.ReplaceAll(rec.Notes, "\n", " "),
		})
	}
	ctx.Println(cli.RenderTable([]string{"Date", "Value", "Mood", "Notes"}, rows))
	return nil
}
