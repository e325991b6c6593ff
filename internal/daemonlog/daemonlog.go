// Package daemonlog provides the daemon's own operational log: a
// rotating file the daemon writes accept/reject/shutdown and error
// events to, separate from the structured request-level logging the
// gateway and domain packages do through zap, and separate from the
// audit trail in internal/audit (which records task mutations, not
// process events).
package daemonlog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog for daemon process logging, with level-specific
// methods over a rotating file sink.
type Logger struct {
	logger *slog.Logger
}

// Config controls where and how the daemon log rotates.
type Config struct {
	// Path is the log file's location. Empty means stderr-only.
	Path string
	// MaxSizeMB is the size a log file reaches before it's rotated.
	MaxSizeMB int
	// MaxBackups caps how many rotated files are kept.
	MaxBackups int
	// MaxAgeDays caps how long a rotated file is kept, regardless of
	// MaxBackups.
	MaxAgeDays int
	// Compress gzips rotated files once they roll over.
	Compress bool
	// JSON selects slog's JSON handler over its text handler.
	JSON bool
	// Level is the minimum level logged ("debug", "info", "warn", "error").
	Level string
}

func defaults() Config {
	return Config{
		MaxSizeMB:  50,
		MaxBackups: 7,
		MaxAgeDays: 30,
		Compress:   true,
		Level:      "info",
	}
}

// New builds a Logger from cfg, filling unset numeric fields with the
// defaults the daemon ships with. If cfg.Path is empty, New logs to
// stderr only and returns a nil io.Closer.
func New(cfg Config) (*Logger, io.Closer) {
	d := defaults()
	if cfg.MaxSizeMB > 0 {
		d.MaxSizeMB = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		d.MaxBackups = cfg.MaxBackups
	}
	if cfg.MaxAgeDays > 0 {
		d.MaxAgeDays = cfg.MaxAgeDays
	}
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Path == "" {
		return &Logger{logger: slog.New(handlerFor(cfg.JSON, os.Stderr, opts))}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    d.MaxSizeMB,
		MaxBackups: d.MaxBackups,
		MaxAge:     d.MaxAgeDays,
		Compress:   cfg.Compress || d.Compress,
	}
	return &Logger{logger: slog.New(handlerFor(cfg.JSON, rotator, opts))}, rotator
}

// Discard builds a Logger that drops every record, for tests and
// code paths that need a Logger but shouldn't produce output.
func Discard() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func handlerFor(json bool, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
