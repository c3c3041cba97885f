// Package logging holds the process-wide operational logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	SetOutput(os.Stderr, false)
}

// Op returns the operational logger.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetOutput replaces the logger's destination. JSON selects the JSON handler
// instead of the text one. The level stays shared.
func SetOutput(w io.Writer, json bool) {
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	opLogger.Store(slog.New(handler))
}

// SetLevel changes the log level for the operational logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// Level returns the current log level.
func Level() slog.Level {
	return logLevel.Level()
}

// SetLevelFromString sets the log level from a string.
// Valid values: "debug", "info", "warn", "error". Anything else is ignored.
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	}
}
