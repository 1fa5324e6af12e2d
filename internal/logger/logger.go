package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	envLocal       = "local"
	envDevelopment = "development"
	envProduction  = "production"
)

// New builds the process logger: text on a local machine, JSON elsewhere.
// level overrides the environment default when it parses.
func New(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	case envProduction:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}))
	default:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	}
	return log.With(slog.String("env", env))
}

func parseLevel(s string, def slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return def
	}
	return l
}
