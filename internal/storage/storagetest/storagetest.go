// Package storagetest is the behavioural suite every storage.Provider must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/julianstephens/habitkeep/internal/dates"
	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
)

// Factory returns an initialized provider. Providers may be shared between
// subtests; every subtest works under its own user id.
type Factory func(t *testing.T) storage.Provider

// Run executes the suite against the providers produced by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Provider, userID string)
	}{
		{"HabitLifecycle", testHabitLifecycle},
		{"HabitOwnership", testHabitOwnership},
		{"DuplicateLiveName", testDuplicateLiveName},
		{"LegacyDaysRoundTrip", testLegacyDaysRoundTrip},
		{"UpsertIsUnique", testUpsertIsUnique},
		{"TombstonesExcluded", testTombstonesExcluded},
		{"RangeBounds", testRangeBounds},
		{"ListForUser", testListForUser},
		{"ImportDays", testImportDays},
		{"StreakVersion", testStreakVersion},
		{"MarkMigrated", testMarkMigrated},
		{"PurgeCascades", testPurgeCascades},
		{"MonthlyCounts", testMonthlyCounts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t), "user-"+uuid.New().String())
		})
	}
}

// NewHabit adds a live, migrated habit for userID
func NewHabit(t *testing.T, s storage.Provider, userID, name string) models.Habit {
	t.Helper()
	h := models.Habit{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Name:                name,
		CreatedAt:           time.Now(),
		CompletionsMigrated: true,
	}
	if err := s.AddHabit(context.Background(), h); err != nil {
		t.Fatalf("AddHabit(%s) failed: %v", name, err)
	}
	return h
}

func mark(t *testing.T, s storage.Provider, h models.Habit, day string, done bool) models.CompletionRecord {
	t.Helper()
	rec := models.CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: day, Completed: done}
	if done {
		now := time.Now()
		rec.CompletedAt = &now
	}
	got, err := s.UpsertDay(context.Background(), rec)
	if err != nil {
		t.Fatalf("UpsertDay(%s) failed: %v", day, err)
	}
	return got
}

func testHabitLifecycle(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "read")

	got, err := s.GetHabit(ctx, h.ID, models.Active(userID))
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if got.Name != "read" || got.UserID != userID || !got.CompletionsMigrated {
		t.Errorf("unexpected habit: %+v", got)
	}

	if err := s.ArchiveHabit(ctx, h.ID); err != nil {
		t.Fatalf("ArchiveHabit failed: %v", err)
	}
	if _, err := s.GetHabit(ctx, h.ID, models.Active(userID)); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("archived habit should be hidden from active query, got %v", err)
	}
	archived, err := s.GetHabit(ctx, h.ID, models.HabitQuery{UserID: userID, IncludeArchived: true})
	if err != nil || archived.ArchivedAt == nil {
		t.Fatalf("expected archived habit with ArchivedAt set, got %+v, %v", archived, err)
	}
	if err := s.UnarchiveHabit(ctx, h.ID); err != nil {
		t.Fatalf("UnarchiveHabit failed: %v", err)
	}

	if err := s.DeleteHabit(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	habits, err := s.ListHabits(ctx, models.Active(userID))
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("soft-deleted habit listed without IncludeDeleted: %+v", habits)
	}
	habits, err = s.ListHabits(ctx, models.HabitQuery{UserID: userID, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(habits) != 1 || habits[0].DeletedAt == nil {
		t.Errorf("expected one soft-deleted habit, got %+v", habits)
	}

	if err := s.RestoreHabit(ctx, h.ID); err != nil {
		t.Fatalf("RestoreHabit failed: %v", err)
	}
	byName, err := s.GetHabitByName(ctx, "read", models.Active(userID))
	if err != nil || byName.ID != h.ID {
		t.Errorf("GetHabitByName after restore = %+v, %v", byName, err)
	}

	if err := s.ArchiveHabit(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("ArchiveHabit(missing) = %v, want ErrNotFound", err)
	}
}

func testHabitOwnership(t *testing.T, s storage.Provider, userID string) {
	h := NewHabit(t, s, userID, "run")
	_, err := s.GetHabit(context.Background(), h.ID, models.Active("someone-else"))
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetHabit for another user = %v, want ErrNotFound", err)
	}
}

func testDuplicateLiveName(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "stretch")

	dup := models.Habit{ID: uuid.New().String(), UserID: userID, Name: "stretch", CreatedAt: time.Now()}
	if err := s.AddHabit(ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("duplicate live name = %v, want ErrConflict", err)
	}

	if err := s.DeleteHabit(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	if err := s.AddHabit(ctx, dup); err != nil {
		t.Errorf("name should be reusable after soft delete: %v", err)
	}
}

func testLegacyDaysRoundTrip(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := models.Habit{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       "legacy",
		CreatedAt:  time.Now(),
		LegacyDays: map[string]bool{"2024-01-01": true, "2024-01-02": false},
	}
	if err := s.AddHabit(ctx, h); err != nil {
		t.Fatalf("AddHabit failed: %v", err)
	}
	got, err := s.GetHabit(ctx, h.ID, models.Active(userID))
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if diff := cmp.Diff(h.LegacyDays, got.LegacyDays); diff != "" {
		t.Errorf("legacy days mismatch (-want +got):\n%s", diff)
	}
	if got.CompletionsMigrated {
		t.Error("new legacy habit should not be migrated")
	}
}

func testUpsertIsUnique(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "water")

	first := mark(t, s, h, "2024-03-01", true)
	if !first.Completed || first.CompletedAt == nil || first.Value != 1 || first.TargetValue != 1 {
		t.Errorf("unexpected first record: %+v", first)
	}

	second := mark(t, s, h, "2024-03-01", false)
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %s != %s", second.ID, first.ID)
	}
	if second.Completed || second.CompletedAt != nil {
		t.Errorf("expected un-completed record, got %+v", second)
	}

	got, err := s.GetCompletion(ctx, h.ID, "2024-03-01")
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if got.Completed {
		t.Error("stored record should be un-completed")
	}

	if _, err := s.GetCompletion(ctx, h.ID, "2024-03-02"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetCompletion(absent) = %v, want ErrNotFound", err)
	}
}

func testTombstonesExcluded(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "journal")
	mark(t, s, h, "2024-03-01", true)
	mark(t, s, h, "2024-03-02", true)
	mark(t, s, h, "2024-03-02", false)

	days, err := s.ListCompleted(ctx, h.ID, nil)
	if err != nil {
		t.Fatalf("ListCompleted failed: %v", err)
	}
	if diff := cmp.Diff([]string{"2024-03-01"}, days); diff != "" {
		t.Errorf("completed days mismatch (-want +got):\n%s", diff)
	}

	empty := NewHabit(t, s, userID, "empty")
	days, err = s.ListCompleted(ctx, empty.ID, nil)
	if err != nil {
		t.Fatalf("ListCompleted failed: %v", err)
	}
	if days == nil || len(days) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", days)
	}
}

func testRangeBounds(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "walk")
	for _, d := range []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-03-05", "2024-03-06"} {
		mark(t, s, h, d, true)
	}

	r, err := dates.NewRange("2024-02-29", "2024-03-05")
	if err != nil {
		t.Fatalf("NewRange failed: %v", err)
	}
	days, err := s.ListCompleted(ctx, h.ID, &r)
	if err != nil {
		t.Fatalf("ListCompleted failed: %v", err)
	}
	if diff := cmp.Diff([]string{"2024-02-29", "2024-03-01", "2024-03-05"}, days); diff != "" {
		t.Errorf("ranged days mismatch (-want +got):\n%s", diff)
	}

	records, err := s.ListRecords(ctx, h.ID, r)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 3 || records[0].Date != "2024-02-29" || records[2].Date != "2024-03-05" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func testListForUser(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	a := NewHabit(t, s, userID, "a")
	b := NewHabit(t, s, userID, "b")
	other := NewHabit(t, s, userID+"-other", "a")
	mark(t, s, a, "2024-04-01", true)
	mark(t, s, b, "2024-04-02", true)
	mark(t, s, b, "2024-04-03", false)
	mark(t, s, other, "2024-04-01", true)

	r, _ := dates.NewRange("2024-04-01", "2024-04-30")
	got, err := s.ListForUser(ctx, models.Active(userID), r)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	want := []models.UserCompletion{
		{HabitID: a.ID, Date: "2024-04-01", Value: 1},
		{HabitID: b.ID, Date: "2024-04-02", Value: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("user completions mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteHabit(ctx, b.ID); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	got, err = s.ListForUser(ctx, models.Active(userID), r)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if diff := cmp.Diff(want[:1], got); diff != "" {
		t.Errorf("deleted habit should be hidden (-want +got):\n%s", diff)
	}
	got, err = s.ListForUser(ctx, models.HabitQuery{UserID: userID, IncludeDeleted: true}, r)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deleted habit should be listed when asked for (-want +got):\n%s", diff)
	}
}

func testImportDays(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "import")
	mark(t, s, h, "2024-01-02", false)

	days := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	n, err := s.ImportDays(ctx, h.ID, userID, days, time.Now())
	if err != nil {
		t.Fatalf("ImportDays failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted (existing row kept), got %d", n)
	}

	n, err = s.ImportDays(ctx, h.ID, userID, days, time.Now())
	if err != nil {
		t.Fatalf("ImportDays (again) failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second import inserted %d rows", n)
	}

	completed, err := s.ListCompleted(ctx, h.ID, nil)
	if err != nil {
		t.Fatalf("ListCompleted failed: %v", err)
	}
	if diff := cmp.Diff([]string{"2024-01-01", "2024-01-03"}, completed); diff != "" {
		t.Errorf("imported days mismatch (-want +got):\n%s", diff)
	}
}

func testStreakVersion(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "version")

	state := models.StreakState{Current: 2, Longest: 5, LastCompletedDate: "2024-05-02"}
	if err := s.SaveStreakState(ctx, h.ID, state, 0); err != nil {
		t.Fatalf("SaveStreakState failed: %v", err)
	}
	got, err := s.GetHabit(ctx, h.ID, models.Active(userID))
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if diff := cmp.Diff(state, got.Streak); diff != "" {
		t.Errorf("streak mismatch (-want +got):\n%s", diff)
	}
	if got.StreakVersion != 1 {
		t.Errorf("expected version 1, got %d", got.StreakVersion)
	}

	if err := s.SaveStreakState(ctx, h.ID, models.StreakState{}, 0); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("stale version = %v, want ErrConflict", err)
	}
	if err := s.SaveStreakState(ctx, "missing", state, 0); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing habit = %v, want ErrNotFound", err)
	}
}

func testMarkMigrated(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := models.Habit{ID: uuid.New().String(), UserID: userID, Name: "old", CreatedAt: time.Now()}
	if err := s.AddHabit(ctx, h); err != nil {
		t.Fatalf("AddHabit failed: %v", err)
	}
	NewHabit(t, s, userID, "new")

	q := models.HabitQuery{UserID: userID, OnlyUnmigrated: true}
	pending, err := s.ListHabits(ctx, q)
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != h.ID {
		t.Fatalf("expected only the unmigrated habit, got %+v", pending)
	}

	if err := s.MarkCompletionsMigrated(ctx, h.ID); err != nil {
		t.Fatalf("MarkCompletionsMigrated failed: %v", err)
	}
	pending, err = s.ListHabits(ctx, q)
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no unmigrated habits, got %+v", pending)
	}
}

func testPurgeCascades(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	h := NewHabit(t, s, userID, "purge")
	mark(t, s, h, "2024-06-01", true)

	if err := s.PurgeHabit(ctx, h.ID); err != nil {
		t.Fatalf("PurgeHabit failed: %v", err)
	}
	if _, err := s.GetHabit(ctx, h.ID, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("purged habit still readable: %v", err)
	}
	if _, err := s.GetCompletion(ctx, h.ID, "2024-06-01"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("purged habit's completion still readable: %v", err)
	}
	if err := s.PurgeHabit(ctx, h.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second purge = %v, want ErrNotFound", err)
	}
}

func testMonthlyCounts(t *testing.T, s storage.Provider, userID string) {
	ctx := context.Background()
	a := NewHabit(t, s, userID, "alpha")
	b := NewHabit(t, s, userID, "beta")
	for _, d := range []string{"2024-02-01", "2024-02-15", "2024-02-29", "2024-03-01"} {
		mark(t, s, a, d, true)
	}
	mark(t, s, b, "2024-02-10", false)

	counts, err := s.CountCompletedByMonth(ctx, models.Active(userID), "2024-02")
	if err != nil {
		t.Fatalf("CountCompletedByMonth failed: %v", err)
	}
	want := []models.MonthlyCount{
		{HabitID: a.ID, HabitName: "alpha", Month: "2024-02", Completed: 3, DaysInMonth: 29, Rate: 3.0 / 29.0},
		{HabitID: b.ID, HabitName: "beta", Month: "2024-02", Completed: 0, DaysInMonth: 29, Rate: 0},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("monthly counts mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteHabit(ctx, a.ID); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	counts, err = s.CountCompletedByMonth(ctx, models.Active(userID), "2024-02")
	if err != nil {
		t.Fatalf("CountCompletedByMonth failed: %v", err)
	}
	if diff := cmp.Diff(want[1:], counts); diff != "" {
		t.Errorf("deleted habit should be hidden (-want +got):\n%s", diff)
	}
	counts, err = s.CountCompletedByMonth(ctx, models.HabitQuery{UserID: userID, IncludeDeleted: true}, "2024-02")
	if err != nil {
		t.Fatalf("CountCompletedByMonth failed: %v", err)
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("deleted habit should be counted when asked for (-want +got):\n%s", diff)
	}

	if _, err := s.CountCompletedByMonth(ctx, models.Active(userID), "2024-13"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("invalid month = %v, want ErrValidation", err)
	}
}
