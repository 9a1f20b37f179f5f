package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitkeep/internal/logger"
)

var (
	// ErrNotFound is returned when a habit or record is absent or not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input such as bad day strings
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when storage rejects a write because of a concurrent change
	ErrConflict = errors.New("conflict")
	// ErrMigration marks per-habit legacy migration failures
	ErrMigration = errors.New("legacy migration failed")
)

// MigrationError records why a single habit could not be migrated.
type MigrationError struct {
	HabitID   string
	HabitName string
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("habit %q (%s): %v", e.HabitName, e.HabitID, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMigration) match any *MigrationError.
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigration
}

// Validationf builds an ErrValidation with a formatted detail message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a formatted detail message
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidation):
		return 2
	case errors.Is(err, ErrNotFound):
		return 3
	case errors.Is(err, ErrConflict):
		return 4
	default:
		return 1
	}
}

// Fatal logs an error and exits the program
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(ExitCode(err))
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
