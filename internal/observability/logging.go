package observability

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a JSON logger writing to w with a component field attached.
// A nil writer discards output.
func NewLogger(component string, w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler)
	if component != "" {
		logger = logger.With("component", component)
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ParseLevel maps a config string to a slog level; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func WithStage(logger *slog.Logger, stage string) *slog.Logger {
	if logger == nil || stage == "" {
		return logger
	}
	return logger.With("stage", stage)
}

func WithAnchor(logger *slog.Logger, anchorKey string) *slog.Logger {
	if logger == nil || anchorKey == "" {
		return logger
	}
	return logger.With("anchor", anchorKey)
}
