// Package logger builds the zerolog loggers used by the command line tool.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing JSON lines to writer
func New(writer io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewConsole returns a human-readable logger on stdout. Verbose lowers the
// level to debug.
func NewConsole(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return New(zerolog.ConsoleWriter{Out: os.Stdout}, level)
}
