package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes to stderr so CLI output and progress bars on stdout stay clean.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(os.Stderr, env)
}

func NewLoggerTo(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		AddSource: env == "development",
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("service", "proctor"))
}
