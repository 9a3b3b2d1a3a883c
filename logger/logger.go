// Package logger provides the structured logging surface used by every
// tokenvault component. It wraps zerolog behind a small typed-field
// interface so that host applications can substitute their own backend
// (see the hclog adapter) without the cache packages caring.
package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses a string to a Level. Unknown values map to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error", "err":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field is a type-safe structured logging field.
type Field interface {
	apply(event *zerolog.Event) *zerolog.Event
}

type (
	stringField struct {
		key   string
		value string
	}
	intField struct {
		key   string
		value int
	}
	boolField struct {
		key   string
		value bool
	}
	durationField struct {
		key   string
		value time.Duration
	}
	timeField struct {
		key   string
		value time.Time
	}
	errorField struct {
		value error
	}
	stringsField struct {
		key   string
		value []string
	}
	anyField struct {
		key   string
		value interface{}
	}
)

func String(key, value string) Field              { return stringField{key, value} }
func Int(key string, value int) Field             { return intField{key, value} }
func Bool(key string, value bool) Field           { return boolField{key, value} }
func Duration(key string, v time.Duration) Field  { return durationField{key, v} }
func Time(key string, value time.Time) Field      { return timeField{key, value} }
func Err(value error) Field                       { return errorField{value} }
func Strings(key string, value []string) Field    { return stringsField{key, value} }
func Any(key string, value interface{}) Field     { return anyField{key, value} }

// Logger is the logging interface consumed by the cache engine.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithSubsystem returns a derived logger tagged with a subsystem name.
	WithSubsystem(name string) Logger

	// WithFields returns a derived logger carrying the given fields on
	// every event.
	WithFields(fields ...Field) Logger

	IsLevelEnabled(level Level) bool
}

// NewNop returns a logger that discards everything. Useful default for
// library consumers that do not configure logging.
func NewNop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...Field)          {}
func (nopLogger) Debug(string, ...Field)          {}
func (nopLogger) Info(string, ...Field)           {}
func (nopLogger) Warn(string, ...Field)           {}
func (nopLogger) Error(string, ...Field)          {}
func (n nopLogger) WithSubsystem(string) Logger   { return n }
func (n nopLogger) WithFields(...Field) Logger    { return n }
func (nopLogger) IsLevelEnabled(Level) bool       { return false }
