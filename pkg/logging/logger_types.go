package logging

import (
	"io"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	// DebugLevel carries per-block and per-granule detail, off by default.
	DebugLevel Level = iota
	// InfoLevel is the default: lifecycle events such as open and close.
	InfoLevel
	// WarnLevel marks tolerated anomalies, like an unverifiable digest.
	WarnLevel
	// ErrorLevel marks failures the caller also sees as an error return.
	ErrorLevel
)

// String returns the level's wire name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name, case-insensitively. Unknown names fall
// back to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG", "debug":
		return DebugLevel
	case "INFO", "info":
		return InfoLevel
	case "WARN", "warn", "WARNING", "warning":
		return WarnLevel
	case "ERROR", "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field is one key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Logger is the seam the library logs through. Containers and frame
// sets take a Logger rather than a concrete type so callers can route
// output wherever they want.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger carrying the given fields on every entry.
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line to a writer. Safe for
// concurrent use.
type JSONLogger struct {
	writer io.Writer
	level  Level
	fields []Field
	mu     sync.Mutex
}

// LogEntry is the line layout JSONLogger emits.
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger is a logger that does nothing. The library packages default to
// it so that embedding the reader or writer stays silent unless a caller
// installs a real logger.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return InfoLevel }

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation logs an operation together with how long it took.
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
