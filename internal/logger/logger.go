package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

// Init configures the process-wide logger. In development mode output goes
// through the console writer; otherwise structured JSON on stderr.
func Init(level string, development bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.New(os.Stderr)
	if development {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	root = out.Level(lvl).With().Timestamp().Logger()
}

// Get returns the process-wide logger.
func Get() zerolog.Logger {
	return root
}

// With returns a logger tagged with the given component name.
func With(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
