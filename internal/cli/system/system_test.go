package system

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/julianstephens/habitkeep/internal/cli"
	"github.com/julianstephens/habitkeep/internal/completion"
	"github.com/julianstephens/habitkeep/internal/config"
	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage/sqlite"
)

const testToday = "2024-05-10"

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	store := sqlite.NewStore(dbPath)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	today := func() string { return testToday }
	var buf bytes.Buffer
	return &cli.Context{
		Store:      store,
		Service:    completion.NewService(store, today),
		Config:     config.Config{Database: dbPath, User: "local", Timezone: "UTC"},
		ConfigPath: filepath.Join(dir, "config.toml"),
		Today:      today,
		Out:        &buf,
	}, &buf, dbPath
}

func addHabit(t *testing.T, ctx *cli.Context, name string) models.Habit {
	t.Helper()
	h := models.Habit{
		ID:                  uuid.New().String(),
		UserID:              ctx.User(),
		Name:                name,
		GoalDays:            30,
		CreatedAt:           time.Now(),
		CompletionsMigrated: true,
	}
	if err := ctx.Store.AddHabit(context.Background(), h); err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}
	return h
}

func TestInitCmd(t *testing.T) {
	for _, key := range []string{constants.EnvDB, constants.EnvDBConnection, constants.EnvUser, constants.EnvTimezone} {
		t.Setenv(key, "")
	}
	ctx, buf, dbPath := setupTestContext(t)

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if !strings.Contains(buf.String(), "Wrote config") {
		t.Errorf("first init should write the config file, got:\n%s", buf.String())
	}

	loaded, err := config.Load(ctx.ConfigPath)
	if err != nil {
		t.Fatalf("written config should load: %v", err)
	}
	if loaded.Database != dbPath || loaded.User != "local" {
		t.Errorf("written config = %+v", loaded)
	}

	// Idempotent
	buf.Reset()
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if strings.Contains(buf.String(), "Wrote config") {
		t.Error("an existing config file must not be overwritten")
	}
}

func TestInitCmdForce(t *testing.T) {
	ctx, buf, _ := setupTestContext(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	addHabit(t, ctx, "Read")

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Deleted existing database") {
		t.Errorf("expected delete notice, got:\n%s", buf.String())
	}

	habits, err := ctx.Store.ListHabits(context.Background(), models.HabitQuery{IncludeArchived: true, IncludeDeleted: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("forced init should start empty, found %d habits", len(habits))
	}
}

func TestMigrateCmdUpToDate(t *testing.T) {
	ctx, buf, _ := setupTestContext(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	buf.Reset()

	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Database is up to date") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestDoctorFixesStaleStreaks(t *testing.T) {
	ctx, buf, _ := setupTestContext(t)
	bg := context.Background()
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	h := addHabit(t, ctx, "Read")
	for _, day := range []string{"2024-05-09", "2024-05-10"} {
		if _, _, err := ctx.Service.Toggle(bg, h.ID, ctx.User(), day); err != nil {
			t.Fatal(err)
		}
	}

	buf.Reset()
	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Fatalf("healthy database should pass: %v\n%s", err, buf.String())
	}

	// Corrupt the cache behind the service's back
	stored, err := ctx.Store.GetHabit(bg, h.ID, models.HabitQuery{})
	if err != nil {
		t.Fatal(err)
	}
	bad := models.StreakState{Current: 9, Longest: 1, LastCompletedDate: "2024-05-01"}
	if err := ctx.Store.SaveStreakState(bg, h.ID, bad, stored.StreakVersion); err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Error("doctor should report the stale streak")
	}
	if !strings.Contains(buf.String(), "stale streaks") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if err := (&DoctorCmd{Fix: true}).Run(ctx); err != nil {
		t.Fatalf("doctor --fix failed: %v\n%s", err, buf.String())
	}

	fixed, err := ctx.Store.GetHabit(bg, h.ID, models.HabitQuery{})
	if err != nil {
		t.Fatal(err)
	}
	want := models.StreakState{Current: 2, Longest: 2, LastCompletedDate: "2024-05-10"}
	if diff := cmp.Diff(want, fixed.Streak); diff != "" {
		t.Errorf("streak after fix mismatch (-want +got):\n%s", diff)
	}
}

func TestDoctorSkipsWithoutDatabase(t *testing.T) {
	ctx, buf, _ := setupTestContext(t)

	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Error("doctor should fail without a database")
	}
	out := buf.String()
	if !strings.Contains(out, "Database connectivity: FAIL") || !strings.Contains(out, "Streak cache: SKIPPED") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
