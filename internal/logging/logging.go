// Package logging builds the zerolog loggers used across the repository.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelOff     = "off"
)

// Logger wraps zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New returns a logger writing to stderr.
func New(level, format string) (Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter returns a logger writing to w. Text output uses the
// zerolog console writer without colors; json writes one object per line.
func NewWithWriter(level, format string, w io.Writer) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}

	var logger zerolog.Logger
	switch strings.ToLower(format) {
	case "", FormatText:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339})
	case FormatJSON:
		logger = zerolog.New(w)
	default:
		return Logger{}, fmt.Errorf("invalid log format %q: must be %s or %s", format, FormatText, FormatJSON)
	}

	logger = logger.Level(lvl).With().Timestamp().Logger()
	return Logger{Logger: logger}, nil
}

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case "", LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelWarn, LevelWarning:
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	case LevelOff:
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return Logger{Logger: zerolog.Nop()}
}

// Component returns a child logger tagged with a component name.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}
