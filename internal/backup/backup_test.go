package backup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitkeep/internal/constants"
)

func setupTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "habitkeep.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE habit_completions (id TEXT PRIMARY KEY, date TEXT)`); err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO habit_completions VALUES ('a', '2024-01-01'), ('b', '2024-01-02')`); err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}
	return dbPath
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM habit_completions").Scan(&n); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

// steppingClock returns a clock that advances one minute per call
func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Minute)
		return cur
	}
}

func TestCreate(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	path, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(filepath.Dir(dbPath), constants.BackupDirName) {
		t.Errorf("backup written outside backup dir: %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), constants.BackupFilePrefix) {
		t.Errorf("unexpected backup name %s", path)
	}
	if n := countRows(t, path); n != 2 {
		t.Errorf("expected 2 rows in backup, got %d", n)
	}
}

func TestCreateMissingDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(context.Background()); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestRotation(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	mgr.now = steppingClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))

	for i := 0; i < constants.MaxBackups+3; i++ {
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != constants.MaxBackups {
		t.Fatalf("expected %d backups after rotation, got %d", constants.MaxBackups, len(backups))
	}
	if !backups[0].Timestamp.After(backups[len(backups)-1].Timestamp) {
		t.Error("backups should be listed newest first")
	}
	oldestKept := time.Date(2024, 1, 1, 9, 4, 0, 0, time.Local)
	if !backups[len(backups)-1].Timestamp.Equal(oldestKept) {
		t.Errorf("oldest kept backup = %v, want %v", backups[len(backups)-1].Timestamp, oldestKept)
	}
}

func TestUniqueNames(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)
	fixed := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	mgr.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		path, err := mgr.Create(context.Background())
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[path] {
			t.Fatalf("duplicate backup path %s", path)
		}
		seen[path] = true
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Errorf("counter-suffixed backups should be listed, got %d", len(backups))
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"habitkeep-20240101-090000.db", true},
		{"habitkeep-20240101-090000-3.db", true},
		{"habitkeep-20240101-0900.db", false},
		{"habitkeep-20240101-090000-x.db", false},
		{"other-20240101-090000.db", false},
		{"habitkeep-20240101-090000.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseName(tt.name); ok != tt.ok {
				t.Errorf("parseName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	dbPath := setupTestDB(t)
	ctx := context.Background()
	mgr := NewManager(dbPath)
	mgr.now = steppingClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local))

	backupPath, err := mgr.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO habit_completions VALUES ('c', '2024-01-03')`); err != nil {
		t.Fatalf("failed to modify database: %v", err)
	}
	db.Close()

	safety, err := mgr.Restore(ctx, backupPath)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n := countRows(t, dbPath); n != 2 {
		t.Errorf("expected restored database to have 2 rows, got %d", n)
	}
	if safety == "" {
		t.Fatal("expected a safety backup of the replaced database")
	}
	if n := countRows(t, safety); n != 3 {
		t.Errorf("safety backup should hold the pre-restore state, got %d rows", n)
	}
}

func TestRestoreRejectsInvalidBackup(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	bogus := filepath.Join(t.TempDir(), "bogus.db")
	if err := os.WriteFile(bogus, []byte("definitely not sqlite, just text padding it out"), 0600); err != nil {
		t.Fatalf("failed to write bogus file: %v", err)
	}

	if _, err := mgr.Restore(context.Background(), bogus); err == nil {
		t.Error("expected error restoring an invalid backup")
	}
	if _, err := mgr.Restore(context.Background(), filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Error("expected error restoring a missing backup")
	}
	if n := countRows(t, dbPath); n != 2 {
		t.Errorf("database must be untouched after a failed restore, got %d rows", n)
	}
}
