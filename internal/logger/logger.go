// Package logger provides process-wide logging for the exchange agent.
// Messages are printf-formatted and written through a log/slog handler.
// Debug messages are only written in verbose mode or at debug level.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects level, format and destination of log output.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is text or json.
	Format string

	// Output is stdout, stderr or file.
	Output string

	// FilePath is required when Output is file.
	FilePath string
}

var (
	mu      sync.RWMutex
	verbose bool
	level   = new(slog.LevelVar)
	format  = "text"
	output  io.Writer = os.Stderr
	closer  io.Closer
	log     = newLogger(output, format)
)

func newLogger(w io.Writer, f string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("2006-01-02T15:04:05.000Z07:00"))
			}
			return a
		},
	}
	if f == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup configures the logger from cfg. It may be called again on reload.
func Setup(cfg Config) error {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	f := strings.ToLower(cfg.Format)
	switch f {
	case "":
		f = "text"
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	var w io.Writer
	var c io.Closer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "file":
		if cfg.FilePath == "" {
			return fmt.Errorf("log file path is required when output is 'file'")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w, c = file, file
	default:
		return fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	output = w
	format = f
	applyLevel(lvl)
	log = newLogger(output, format)
	return nil
}

// parseLevel parses a level string; empty means info.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// configured holds the level chosen by Setup so verbose mode can be undone.
var configured = slog.LevelInfo

// applyLevel sets the handler level (caller must hold lock).
func applyLevel(lvl slog.Level) {
	configured = lvl
	if verbose {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(lvl)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	applyLevel(configured)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = newLogger(output, format)
}

func emit(lvl slog.Level, msg string, args []any) {
	mu.RLock()
	l := log
	mu.RUnlock()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(msg, args...))
}

// Debug logs a message if verbose mode or debug level is enabled.
func Debug(format string, args ...any) {
	emit(slog.LevelDebug, format, args)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	emit(slog.LevelInfo, format, args)
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	emit(slog.LevelWarn, format, args)
}

// Error logs an error message.
func Error(format string, args ...any) {
	emit(slog.LevelError, format, args)
}
