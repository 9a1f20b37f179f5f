package habits

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/completion"
	"github.com/julianstephens/habitkeep/internal/config"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage/sqlite"
)

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	today := func() string { return "2024-05-10" }
	var buf bytes.Buffer
	return &cli.Context{
		Store:   store,
		Service: completion.NewService(store, today),
		Config:  config.Config{User: "local", Timezone: "UTC"},
		Today:   today,
		Out:     &buf,
	}, &buf
}

func mustRun(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
}

func TestHabitAddRejectsDuplicates(t *testing.T) {
	ctx, _ := setupTestContext(t)

	mustRun(t, (&HabitAddCmd{Name: "Read", Goal: 30}).Run(ctx))
	err := (&HabitAddCmd{Name: " Read ", Goal: 30}).Run(ctx)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("duplicate name should be a validation error, got %v", err)
	}

	h, err := ctx.FindHabit(context.Background(), "Read", models.HabitQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if !h.CompletionsMigrated {
		t.Error("new habits start on the completion log")
	}
}

func TestHabitLifecycle(t *testing.T) {
	ctx, buf := setupTestContext(t)
	bg := context.Background()

	mustRun(t, (&HabitAddCmd{Name: "Read", Goal: 30}).Run(ctx))

	mustRun(t, (&HabitArchiveCmd{Habit: "Read"}).Run(ctx))
	if _, err := ctx.FindHabit(bg, "Read", models.HabitQuery{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("archived habit should leave the active list, got %v", err)
	}

	// Archived habits can still be tracked
	mustRun(t, (&ToggleCmd{Habit: "Read"}).Run(ctx))

	mustRun(t, (&HabitUnarchiveCmd{Habit: "Read"}).Run(ctx))
	if err := (&HabitUnarchiveCmd{Habit: "Read"}).Run(ctx); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("unarchiving an active habit should fail, got %v", err)
	}

	mustRun(t, (&HabitDeleteCmd{Habit: "Read"}).Run(ctx))
	if err := (&ToggleCmd{Habit: "Read"}).Run(ctx); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleted habit should not be writable, got %v", err)
	}
	mustRun(t, (&HabitRestoreCmd{Habit: "Read"}).Run(ctx))

	buf.Reset()
	mustRun(t, (&DaysCmd{Habit: "Read"}).Run(ctx))
	if !strings.Contains(buf.String(), "2024-05-10") {
		t.Errorf("completion should survive delete and restore:\n%s", buf.String())
	}
}

func TestHabitPurge(t *testing.T) {
	ctx, _ := setupTestContext(t)
	bg := context.Background()

	mustRun(t, (&HabitAddCmd{Name: "Read", Goal: 30}).Run(ctx))
	mustRun(t, (&ToggleCmd{Habit: "Read", Date: "2024-05-09"}).Run(ctx))
	h, err := ctx.FindHabit(bg, "Read", models.HabitQuery{})
	if err != nil {
		t.Fatal(err)
	}

	if err := (&HabitPurgeCmd{Habit: "Read"}).Run(ctx); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("purge without --yes should be refused, got %v", err)
	}
	mustRun(t, (&HabitPurgeCmd{Habit: "Read", Yes: true}).Run(ctx))

	if _, err := ctx.Store.GetHabit(bg, h.ID, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("purged habit should be gone, got %v", err)
	}
	days, err := ctx.Store.ListCompleted(bg, h.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 0 {
		t.Errorf("purge should remove the completion log, found %v", days)
	}
}

func TestToggleAndMarkOutput(t *testing.T) {
	ctx, buf := setupTestContext(t)
	mustRun(t, (&HabitAddCmd{Name: "Read", Goal: 30}).Run(ctx))

	buf.Reset()
	mustRun(t, (&ToggleCmd{Habit: "Read", Date: "2024-05-09"}).Run(ctx))
	mustRun(t, (&ToggleCmd{Habit: "Read"}).Run(ctx))
	out := buf.String()
	if !strings.Contains(out, "Marked Read for 2024-05-10") || !strings.Contains(out, "Current streak: 2  Longest: 2") {
		t.Errorf("unexpected toggle output:\n%s", out)
	}

	err := (&MarkCmd{Habit: "Read", Date: "2024-05-11", Value: 1, Target: 1}).Run(ctx)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("marking a future day should be rejected, got %v", err)
	}
	err = (&MarkCmd{Habit: "Read", Date: "2024-05-08", Value: -1, Target: 1}).Run(ctx)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("negative value should be rejected, got %v", err)
	}

	buf.Reset()
	mustRun(t, (&MarkCmd{Habit: "Read", Date: "2024-05-08", Mood: "great", Value: 20, Target: 10}).Run(ctx))
	if !strings.Contains(buf.String(), "Current streak: 3  Longest: 3") {
		t.Errorf("unexpected mark output:\n%s", buf.String())
	}
}

func TestStreakAndLog(t *testing.T) {
	ctx, buf := setupTestContext(t)
	mustRun(t, (&HabitAddCmd{Name: "Read", Goal: 30}).Run(ctx))
	mustRun(t, (&HabitAddCmd{Name: "Stretch", Goal: 30}).Run(ctx))
	for _, day := range []string{"2024-05-01", "2024-05-02", "2024-05-05", "2024-05-09", "2024-05-10"} {
		mustRun(t, (&ToggleCmd{Habit: "Read", Date: day}).Run(ctx))
	}

	buf.Reset()
	mustRun(t, (&StreakCmd{Habit: "Read", Top: 2}).Run(ctx))
	out := buf.String()
	for _, want := range []string{"Current streak: 2", "Longest streak: 2", "Last completed: 2024-05-10", "Runs:           3"} {
		if !strings.Contains(out, want) {
			t.Errorf("streak output missing %q:\n%s", want, out)
		}
	}
	// The single-day run ranks last and is cut
	if strings.Contains(out, "2024-05-05") {
		t.Errorf("top 2 should not include the shortest run:\n%s", out)
	}

	buf.Reset()
	mustRun(t, (&LogCmd{Days: 3}).Run(ctx))
	out = buf.String()
	for _, want := range []string{"last 3 days", "05/08", "05/10", "Read", "Stretch"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "■"); got != 2 {
		t.Errorf("log should show 2 completed cells, got %d:\n%s", got, out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a very long habit name indeed", 10); got != "a very ..." {
		t.Errorf("truncate() = %q", got)
	}
}
