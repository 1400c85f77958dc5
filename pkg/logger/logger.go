package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const LevelInfo = "info"

// New builds the process logger. Production environments get JSON records,
// everything else gets text. A nil writer means stdout.
func New(lvl string, addSource bool, environment string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(lvl),
		AddSource: addSource,
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	)
}

// NewAccess builds the request access logger. It records at info and above
// whatever level the process logger runs at, so every completed request
// keeps its line.
func NewAccess(environment string, w io.Writer) *slog.Logger {
	return New(LevelInfo, false, environment, w)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
