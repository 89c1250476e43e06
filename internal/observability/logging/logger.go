// Package logging configures the JSON slog output shared by all binaries.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Setup installs a JSON logger writing to w as the process default.
func Setup(w io.Writer, service, level string) *slog.Logger {
	logger := New(w, service, level)
	slog.SetDefault(logger)
	return logger
}

// New tags every record with the service name. Unknown levels fall back to info.
func New(w io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h).With(slog.String("service", service))
}

func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
