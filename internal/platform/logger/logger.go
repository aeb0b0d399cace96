package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger tagged with the local hospital id.
func New(hospitalID string) *slog.Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"), hospitalID)
}

// NewWithWriter builds the logger against an arbitrary writer.
func NewWithWriter(w io.Writer, level string, hospitalID string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler).With("hospital_id", hospitalID)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
