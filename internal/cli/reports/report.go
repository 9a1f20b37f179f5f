package reports

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/dates"
	"github.com/julianstephens/habitkeep/internal/models"
)

type ReportCmd struct {
	Month       ReportMonthCmd       `cmd:"" help:"Per-habit completion counts for a month."`
	Leaderboard ReportLeaderboardCmd `cmd:"" help:"Habits ranked by current streak."`
}

type ReportMonthCmd struct {
	Month   string `arg:"" optional:"" help:"Month in YYYY-MM format (default: this month)."`
	Deleted bool   `help:"Include deleted habits."`
}

func (c *ReportMonthCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	month := c.Month
	if month == "" {
		t, err := dates.Parse(ctx.Today())
		if err != nil {
			return err
		}
		month = t.Format(constants.MonthFormat)
	}

	q := models.HabitQuery{UserID: ctx.User(), IncludeArchived: true, IncludeDeleted: c.Deleted}
	counts, err := ctx.Service.MonthlyCounts(cctx, q, month)
	if err != nil {
		return err
	}

	ctx.Println(cli.TitleStyle.Render("Completions for " + month))
	if len(counts) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	rows := make([][]string, 0, len(counts))
	for _, mc := range counts {
		rows = append(rows, []string{
			mc.HabitName,
			fmt.Sprintf("%d/%d", mc.Completed, mc.DaysInMonth),
			fmt.Sprintf("%.0f%%", mc.Rate*100),
		})
	}
	ctx.Println(cli.RenderTable([]string{"Habit", "Days", "Rate"}, rows))
	return nil
}

type ReportLeaderboardCmd struct {
	Limit int `help:"Show at most this many habits (0 for all)." default:"0"`
}

func (c *ReportLeaderboardCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	entries, err := ctx.Service.Leaderboard(cctx, ctx.User())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ctx.Println("No habits found.")
		return nil
	}
	if c.Limit > 0 && len(entries) > c.Limit {
		entries = entries[:c.Limit]
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		last := e.LastDate
		if last == "" {
			last = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.HabitName,
			strconv.Itoa(e.Current),
			strconv.Itoa(e.Longest),
			last,
		})
	}
	ctx.Println(cli.TitleStyle.Render("Leaderboard"))
	ctx.Println(cli.RenderTable([]string{"#", "Habit", "Current", "Longest", "Last"}, rows))
	return nil
}
