// Package logger holds the process-wide structured logger. Records go to a
// rotating file next to the config; with --debug they are echoed as well.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitkeep/internal/constants"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

var std = New(io.Discard, false)

type Options struct {
	// Dir receives habitkeep.log and its rotated siblings
	Dir   string
	Debug bool
	// Echo gets a copy of every record in debug mode, usually stderr
	Echo io.Writer
}

// Setup routes the package logger to a rotating file under opts.Dir. The
// returned closer releases the file.
func Setup(opts Options) (io.Closer, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, constants.AppName+".log"),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	var w io.Writer = file
	if opts.Debug && opts.Echo != nil {
		w = io.MultiWriter(opts.Echo, file)
	}
	Use(New(w, opts.Debug))
	return file, nil
}

// New builds a logger in the habitkeep format. Warnings and up are kept
// unless debug is set, which also reports the caller.
func New(w io.Writer, debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
}

// Use swaps the package logger. nil discards everything.
func Use(l *log.Logger) {
	if l == nil {
		l = New(io.Discard, false)
	}
	std = l
}

func Debug(msg string, keyvals ...interface{}) { std.Debug(msg, keyvals...) }

func Info(msg string, keyvals ...interface{}) { std.Info(msg, keyvals...) }

func Warn(msg string, keyvals ...interface{}) { std.Warn(msg, keyvals...) }

func Error(msg string, keyvals ...interface{}) { std.Error(msg, keyvals...) }
