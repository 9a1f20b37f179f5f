package habits

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitkeep/internal/cli"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/models"
)

type HabitCmd struct {
	Add       HabitAddCmd       `cmd:"" help:"Add a new habit."`
	List      HabitListCmd      `cmd:"" help:"List habits."`
	Archive   HabitArchiveCmd   `cmd:"" help:"Archive a habit."`
	Unarchive HabitUnarchiveCmd `cmd:"" help:"Return an archived habit to the active list."`
	Delete    HabitDeleteCmd    `cmd:"" help:"Delete a habit (soft delete)."`
	Restore   HabitRestoreCmd   `cmd:"" help:"Restore a deleted habit."`
	Purge     HabitPurgeCmd     `cmd:"" help:"Permanently remove a habit and its completion log."`
}

type HabitAddCmd struct {
	Name string `arg:"" help:"Habit name."`
	Goal int    `help:"Goal in days (1-365)." default:"30"`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	name := strings.TrimSpace(c.Name)
	if _, err := ctx.Store.GetHabitByName(cctx, name, models.Active(ctx.User())); err == nil {
		return apperrors.Validationf("habit with name %q already exists", name)
	}

	habit := models.Habit{
		ID:                  uuid.New().String(),
		UserID:              ctx.User(),
		Name:                name,
		GoalDays:            c.Goal,
		CreatedAt:           time.Now(),
		CompletionsMigrated: true,
	}
	if err := habit.Validate(); err != nil {
		return err
	}
	if err := ctx.Store.AddHabit(cctx, habit); err != nil {
		return err
	}

	logger.Info("added habit", "habit", habit.ID, "name", habit.Name)
	ctx.Printf("Added habit: %s\n", habit.Name)
	return nil
}

type HabitListCmd struct {
	Archived bool `help:"Include archived habits."`
	Deleted  bool `help:"Include deleted habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habits, err := ctx.Store.ListHabits(cctx, models.HabitQuery{
		UserID:          ctx.User(),
		IncludeArchived: c.Archived,
		IncludeDeleted:  c.Deleted,
	})
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	today := ctx.Today()
	rows := make([][]string, 0, len(habits))
	for _, h := range habits {
		completed := "-"
		progress := "-"
		// Deleted habits are outside the service's read paths
		if h.DeletedAt == nil {
			days, err := ctx.Service.GetCompletedDays(cctx, h.ID, ctx.User())
			if err != nil {
				return err
			}
			completed = strconv.Itoa(len(days))
			progress = fmt.Sprintf("%d%%", h.Progress(len(days)))
		}
		rows = append(rows, []string{
			h.Name,
			status(h),
			strconv.Itoa(h.GoalDays),
			completed,
			progress,
			strconv.Itoa(h.Streak.EffectiveCurrent(today)),
			strconv.Itoa(h.Streak.Longest),
		})
	}

	ctx.Println(cli.RenderTable(
		[]string{"Habit", "Status", "Goal", "Done", "Progress", "Current", "Longest"},
		rows,
	))
	return nil
}

func status(h models.Habit) string {
	switch {
	case h.DeletedAt != nil:
		return "deleted"
	case h.ArchivedAt != nil:
		return "archived"
	case !h.CompletionsMigrated:
		return "legacy"
	default:
		return "active"
	}
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{})
	if err != nil {
		return err
	}
	if err := ctx.Store.ArchiveHabit(cctx, habit.ID); err != nil {
		return err
	}
	ctx.Printf("Archived habit: %s\n", habit.Name)
	return nil
}

type HabitUnarchiveCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitUnarchiveCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}
	if habit.ArchivedAt == nil {
		return apperrors.Validationf("habit %q is not archived", habit.Name)
	}
	if err := ctx.Store.UnarchiveHabit(cctx, habit.ID); err != nil {
		return err
	}
	ctx.Printf("Unarchived habit: %s\n", habit.Name)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true})
	if err != nil {
		return err
	}
	if err := ctx.Store.DeleteHabit(cctx, habit.ID); err != nil {
		return err
	}
	ctx.Printf("Deleted habit: %s (restore with 'habitkeep habit restore %s')\n", habit.Name, habit.ID)
	return nil
}

type HabitRestoreCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
}

func (c *HabitRestoreCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true})
	if err != nil {
		return err
	}
	if habit.DeletedAt == nil {
		return apperrors.Validationf("habit %q is not deleted", habit.Name)
	}
	if err := ctx.Store.RestoreHabit(cctx, habit.ID); err != nil {
		return err
	}
	ctx.Printf("Restored habit: %s\n", habit.Name)
	return nil
}

type HabitPurgeCmd struct {
	Habit string `arg:"" help:"Habit name or id."`
	Yes   bool   `short:"y" help:"Confirm permanent removal."`
}

func (c *HabitPurgeCmd) Run(ctx *cli.Context) error {
	cctx, cancel := ctx.Command()
	defer cancel()

	habit, err := ctx.FindHabit(cctx, c.Habit, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true})
	if err != nil {
		return err
	}
	if !c.Yes {
		return apperrors.Validationf("purging %q removes its whole history; pass --yes to confirm", habit.Name)
	}

	ctx.PerformAutomaticBackup(cctx)
	if err := ctx.Store.PurgeHabit(cctx, habit.ID); err != nil {
		return err
	}
	logger.Info("purged habit", "habit", habit.ID, "name", habit.Name)
	ctx.Printf("Purged habit: %s\n", habit.Name)
	return nil
}
