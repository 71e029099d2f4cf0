package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Fields represents structured logging fields.
type Fields map[string]any

// ParseLevel converts a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// SetupLogger configures the global logger with appropriate settings.
// Output goes to stderr plus any extra writers.
func SetupLogger(level slog.Level, format string, extra ...io.Writer) (*slog.Logger, error) {
	writers := append([]io.Writer{os.Stderr}, extra...)
	out := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "console", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}

// OrDefault returns logger, or the default logger when nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LogError logs an error with additional context.
func LogError(logger *slog.Logger, err error, msg string, fields Fields) {
	attrs := make([]slog.Attr, 0, len(fields)+2)
	attrs = append(attrs, slog.String("error", err.Error()), slog.String("category", string(Categorize(err))))

	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	OrDefault(logger).LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}
