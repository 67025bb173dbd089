package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging settings
type Config struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Color      bool   `toml:"color"`
}

// DefaultConfig returns the logging defaults
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		File:       "sync.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Color:      true,
	}
}

// ParseLevel converts a configured level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", name)
	}
}

// Logger is the process-scoped progress logger. It owns the log file.
type Logger struct {
	*slog.Logger
	file io.WriteCloser
}

// New opens the log file once for the run and returns a logger writing to
// both console and file. An empty Config.File disables the file sink.
func New(config Config, console io.Writer) (*Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	opts := HandlerOptions{
		Console: console,
		Level:   level,
		Color:   config.Color,
	}

	l := &Logger{}
	if config.File != "" {
		// lumberjack appends to an existing file and writes through
		// without buffering
		l.file = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
		}
		opts.File = l.file
	}

	l.Logger = slog.New(NewHandler(opts))
	return l, nil
}

// Close releases the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Progress logs a PROGRESS line
func Progress(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelProgress, msg, args...)
}

// Success logs a SUCCESS line
func Success(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelSuccess, msg, args...)
}
