// Package logger configures the process-wide zerolog instance used by every
// TaskIndex component.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance.
var Log zerolog.Logger

func init() {
	// JSON output for production
	Log = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()

	// Pretty print for development
	if os.Getenv("APP_ENV") != "production" {
		Log = Log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// For returns a child logger tagged with the given component name, so log
// lines from the index, dispatcher and server can be told apart.
func For(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
