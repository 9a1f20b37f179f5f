package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      errors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "wrapped sentinel",
			err:      fmt.Errorf("habit %q: %w", "read", ErrNotFound),
			expected: `Error: habit "read": not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	result := Formatf("failed to load %s", "database")
	if result != "Error: failed to load database" {
		t.Errorf("Formatf() = %q", result)
	}
}

func TestDetailHelpers(t *testing.T) {
	err := Validationf("invalid day %q", "2024-13-01")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Validationf() should wrap ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), `invalid day "2024-13-01"`) {
		t.Errorf("Validationf() lost detail: %q", err.Error())
	}

	err = NotFoundf("habit %s", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFoundf() should wrap ErrNotFound, got %v", err)
	}
}

func TestMigrationError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&MigrationError{HabitID: "h1", HabitName: "Read", Err: cause})

	if !errors.Is(err, ErrMigration) {
		t.Error("MigrationError should match ErrMigration")
	}
	if !errors.Is(err, cause) {
		t.Error("MigrationError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("batch: %w", err)
	var me *MigrationError
	if !errors.As(wrapped, &me) {
		t.Fatal("errors.As should find the MigrationError")
	}
	if me.HabitID != "h1" {
		t.Errorf("HabitID = %q, want h1", me.HabitID)
	}
	if got := err.Error(); got != `habit "Read" (h1): disk full` {
		t.Errorf("Error() = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{Validationf("bad"), 2},
		{fmt.Errorf("get: %w", ErrNotFound), 3},
		{fmt.Errorf("save: %w", ErrConflict), 4},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// TestFatal tests the Fatal function using exec helper process
func TestFatal(t *testing.T) {
	if os.Getenv("GO_TEST_FATAL") == "1" {
		Fatal(NotFoundf("habit %q", "read"))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatal$")
	cmd.Env = append(os.Environ(), "GO_TEST_FATAL=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if e, ok := err.(*exec.ExitError); ok && !e.Success() {
		if e.ExitCode() != 3 {
			t.Errorf("Fatal() exit code = %d, want 3", e.ExitCode())
		}
		if !strings.Contains(stderr.String(), `Error: not found: habit "read"`) {
			t.Errorf("Fatal() stderr = %q", stderr.String())
		}
	} else {
		t.Errorf("Fatal() did not exit with error: %v", err)
	}
}

// TestFatal_NilError tests that Fatal does nothing when passed a nil error
func TestFatal_NilError(t *testing.T) {
	if os.Getenv("GO_TEST_FATAL_NIL") == "1" {
		Fatal(nil)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFatal_NilError")
	cmd.Env = append(os.Environ(), "GO_TEST_FATAL_NIL=1")

	if err := cmd.Run(); err != nil {
		t.Errorf("Fatal(nil) should not exit, but got error: %v", err)
	}
}
