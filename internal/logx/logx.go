// Package logx provides the library's structured logging, a thin
// wrapper over zerolog mirroring the teacher's internal/logging
// package (one logger, timestamped console output, Debug/Info/Warn/
// Error accessors returning *zerolog.Event for field chaining).
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger for use across the facade and
// orchestrator. The zero value is not usable; use New or Default.
type Logger struct {
	z zerolog.Logger
}

// New creates a Logger writing to w in zerolog's console format.
func New(w io.Writer) *Logger {
	z := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	return &Logger{z: z}
}

// Default returns a Logger writing to stderr, matching the teacher's
// NewDefaultCLILogger but defaulting to stderr since this library has
// no stdout/progress-bar contention to avoid at the library layer.
func Default() *Logger {
	return New(os.Stderr)
}

func (l *Logger) Debug() *zerolog.Event { return l.z.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.z.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.z.Error() }

// With returns a child logger context for adding structured fields.
func (l *Logger) With() zerolog.Context { return l.z.With() }

// SetLevel sets the minimum level this logger emits.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.z = l.z.Level(level)
}
