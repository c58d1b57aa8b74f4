package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

// Options tunes the writer logger.
type Options struct {
	NoColor bool
	Level   slog.Level
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) write(level slog.Level, msg string, obj any) {
	s.l.LogAttrs(context.Background(), level, msg, attrs(obj)...)
}

// attrs expands maps into sorted attributes keyed as the caller named them.
// A bare error is logged under "error"; anything else is logged as obj.
func attrs(obj any) []slog.Attr {
	switch v := obj.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]slog.Attr, 0, len(keys))
		for _, k := range keys {
			out = append(out, slog.Any(k, v[k]))
		}
		return out
	case error:
		return []slog.Attr{slog.Any("error", v)}
	default:
		return []slog.Attr{slog.Any("obj", v)}
	}
}

// NewWriterLogger builds a colored logger that writes to an io.Writer.
func NewWriterLogger(w io.Writer) Logger {
	return New(w, Options{Level: slog.LevelDebug})
}

// New builds a logger backed by a tint slog handler.
func New(w io.Writer, opts Options) Logger {
	if w == nil {
		return NopLogger{}
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	})
	return slogLogger{l: slog.New(handler)}
}

func (s slogLogger) Info(msg string, obj any)  { s.write(slog.LevelInfo, msg, obj) }
func (s slogLogger) Warn(msg string, obj any)  { s.write(slog.LevelWarn, msg, obj) }
func (s slogLogger) Debug(msg string, obj any) { s.write(slog.LevelDebug, msg, obj) }
func (s slogLogger) Error(msg string, obj any) { s.write(slog.LevelError, msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
