// Package logging provides the shared zerolog setup for the service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so callers share one configured instance
type Logger struct {
	zerolog.Logger
}

// New creates a logger writing human-readable output to stderr. Unknown
// level strings fall back to info.
func New(level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger}
}

// NewSilent creates a logger that discards all output, for tests.
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.New(io.Discard)}
}
