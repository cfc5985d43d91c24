// Package logging wraps logrus with the ergonomic, level-named
// convenience methods call sites expect, plus file rotation via
// lumberjack and color detection via go-isatty.
package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"simon/internal/types"
)

// Logger is a thin, ergonomic wrapper over a *logrus.Entry shared
// across the driver and its goroutines. logrus.Entry is already
// goroutine-safe for concurrent use, so no additional locking is
// needed here.
type Logger struct {
	entry *logrus.Entry
}

// Success and Count are not levels logrus ships with; they are
// reported as Info with a field so they are still filterable and
// still readable without a custom level registration.
const (
	fieldKind   = "kind"
	kindSuccess = "success"
	kindCount   = "count"
)

// New builds a Logger per settings: console (stderr) output with
// optional ANSI color (detected via isatty) or, when settings.LogDir is
// set, file output only, with size/age-bounded rotation.
func New(settings types.LogSettings) (*Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   isatty.IsTerminal(os.Stdout.Fd()),
	})

	level, err := logrus.ParseLevel(orDefault(settings.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	base.SetLevel(level)

	if settings.LogDir != "" {
		if err := os.MkdirAll(settings.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   settings.LogDir + "/simon.log",
			MaxSize:    orDefaultInt(settings.MaxSizeMB, 100),
			MaxAge:     orDefaultInt(settings.MaxAgeDays, 14),
			MaxBackups: orDefaultInt(settings.MaxBackups, 5),
		}
		base.SetOutput(rotator)
	}

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// With returns a child Logger carrying an additional structured field,
// for call sites that want to scope log lines to e.g. a timestep.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Entry exposes the underlying *logrus.Entry for components (like
// task.Task.LogFailure) that want direct logrus access.
func (l *Logger) Entry() *logrus.Entry { return l.entry }

func (l *Logger) Debug(msg string)            { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)             { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)             { l.entry.Warn(msg) }
func (l *Logger) Error(msg string)            { l.entry.Error(msg) }
func (l *Logger) Fatal(msg string)            { l.entry.Fatal(msg) }
func (l *Logger) Success(msg string)          { l.entry.WithField(fieldKind, kindSuccess).Info(msg) }
func (l *Logger) Count(msg string)            { l.entry.WithField(fieldKind, kindCount).Info(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }
func (l *Logger) Successf(format string, args ...any) {
	l.entry.WithField(fieldKind, kindSuccess).Infof(format, args...)
}
func (l *Logger) Countf(format string, args ...any) {
	l.entry.WithField(fieldKind, kindCount).Infof(format, args...)
}
