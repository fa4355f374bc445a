// Package logging builds the slog loggers used by both binaries. Logs go to
// a caller-supplied writer (stderr in practice) and optionally to a rotating
// file; stdout is never touched so the helper's payload channel stays clean.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level          string
	Format         string
	FilePath       string
	FileMaxSizeMB  int
	FileMaxFiles   int
	FileMaxAgeDays int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "text",
		FileMaxSizeMB:  10,
		FileMaxFiles:   3,
		FileMaxAgeDays: 14,
	}
}

// New returns a logger writing to w and, when cfg.FilePath is set, to a
// rotating log file. The returned closer releases the file and is never nil.
func New(cfg Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	if !ValidLevel(cfg.Level) {
		return nil, nopCloser{}, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	if !ValidFormat(cfg.Format) {
		return nil, nopCloser{}, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	writer, closer := buildWriter(cfg, w)
	return slog.New(buildHandler(writer, ParseLevel(cfg.Level), cfg.Format)), closer, nil
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel returns true if s is a recognized log level. Empty means info.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "", "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat returns true if s is a recognized log format. Empty means text.
func ValidFormat(s string) bool {
	switch strings.ToLower(s) {
	case "", "text", "json":
		return true
	}
	return false
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func buildWriter(cfg Config, w io.Writer) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return w, nopCloser{}
	}

	defaults := DefaultConfig()
	maxSize := cfg.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = defaults.FileMaxSizeMB
	}
	maxFiles := cfg.FileMaxFiles
	if maxFiles <= 0 {
		maxFiles = defaults.FileMaxFiles
	}
	maxAge := cfg.FileMaxAgeDays
	if maxAge <= 0 {
		maxAge = defaults.FileMaxAgeDays
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     maxAge,
	}
	return io.MultiWriter(w, lj), lj
}

func buildHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
