package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a configured level name to a slog.Level. Unknown names fall
// back to info.
func ParseLevel(level string) slog.Level {
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

// NewHandler builds the slog handler used by the site: JSON for "json",
// key=value text for anything else. Source locations are attached only at
// debug level.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetupLogger installs a stdout logger as the slog default so that every
// slog.Info/Warn/Error call in the site uses the configured format and level.
func SetupLogger(format, level string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, format, level)))
	slog.Info("logger initialised", "format", format, "level", ParseLevel(level).String())
}
