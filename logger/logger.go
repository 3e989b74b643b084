// Package logger provides a minimal slog-based logging wrapper.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// maxPayloadChars bounds how much of a shared payload ends up in log lines.
const maxPayloadChars = 160

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	Format  string // text (default) or json
	Stdout  bool
	File    string
}

var (
	mu      sync.RWMutex
	base    *slog.Logger
	enabled = true
)

// Init initializes the logger with the provided config.
func Init(cfg Config, configDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if !cfg.Enabled {
		enabled = false
		base = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
		return nil
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var writers []io.Writer
	var initErr error
	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		path := expandPath(cfg.File, configDir)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("logger: create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			writers = append(writers, f)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	base = slog.New(newHandler(cfg.Format, io.MultiWriter(writers...), opts))
	enabled = true
	return initErr
}

// SetOutput routes all log lines to w at debug level. Intended for tests and
// one-shot commands.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	base = slog.New(newHandler(format, w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	enabled = true
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(slog.LevelDebug, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(slog.LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(slog.LevelError, msg, args...)
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l := base
	on := enabled
	mu.RUnlock()

	if !on || l == nil {
		return
	}

	l.Log(context.Background(), level, msg, sanitizeKeyvals(args)...)
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

func expandPath(path, configDir string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	if configDir != "" {
		return filepath.Join(configDir, path)
	}
	return path
}

func sanitizeKeyvals(args []any) []any {
	if len(args) == 0 {
		return args
	}
	if len(args)%2 == 1 {
		args = append(args, "(missing)")
	}

	safe := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		key, _ := args[i].(string)
		val := args[i+1]
		switch {
		case isSensitiveKey(key):
			safe = append(safe, key, "[REDACTED]")
		case isPayloadKey(key):
			safe = append(safe, key, truncatePayload(val))
		default:
			safe = append(safe, key, val)
		}
	}
	return safe
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"apikey", "api_key", "secret", "authorization", "bearer", "token", "password"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// isPayloadKey reports keys that carry user-shared content.
func isPayloadKey(key string) bool {
	switch strings.ToLower(key) {
	case "text", "payload", "raw", "html":
		return true
	}
	return false
}

func truncatePayload(val any) any {
	s, ok := val.(string)
	if !ok || utf8.RuneCountInString(s) <= maxPayloadChars {
		return val
	}
	runes := []rune(s)
	return string(runes[:maxPayloadChars]) + fmt.Sprintf("...(%d chars)", len(runes))
}
