// Package logger builds the structured slog logger used across the binary.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup returns a logger writing to w at the given level. format is "json"
// (the default when empty) or "text".
func Setup(w io.Writer, level, format string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// SetupDefault installs the logger as the slog default and returns it.
func SetupDefault(w io.Writer, level, format string) (*slog.Logger, error) {
	l, err := Setup(w, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	if level == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
