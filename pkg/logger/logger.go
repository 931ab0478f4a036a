package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "blog-comment-widget"

// New creates a new zerolog logger with structured output.
// LOG_LEVEL picks the level; ENV=development or LOG_FORMAT=pretty switches
// to console output.
func New() zerolog.Logger {
	format := os.Getenv("LOG_FORMAT")
	if os.Getenv("ENV") == "development" {
		format = "pretty"
	}
	return NewWithOutput(os.Stdout, os.Getenv("LOG_LEVEL"), format)
}

// NewWithOutput creates a logger writing to w. Commands that own the
// terminal pass a file or io.Discard.
func NewWithOutput(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if format == "pretty" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			Level(ParseLevel(level)).
			With().
			Timestamp().
			Caller().
			Str("service", serviceName).
			Logger()
	}

	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// ParseLevel maps a LOG_LEVEL value onto a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
