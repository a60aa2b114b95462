// Package status classifies trajectory I/O errors by severity.
//
// A nil error means the operation succeeded. Non-nil errors are either
// recoverable (the file and the container remain usable, the caller can
// skip the offending block or retry with different arguments) or critical
// (the file position, or the file itself, can no longer be trusted).
// Callers pattern-match with errors.Is on the sentinel kinds declared by
// each package and with IsCritical/IsRecoverable for severity.
package status

import (
	"errors"
	"fmt"
)

// Severity classifies how much state an error invalidates.
type Severity uint8

const (
	// Recoverable marks a failed operation that leaves the container and
	// the underlying file usable.
	Recoverable Severity = iota + 1
	// Critical marks an error after which the current file must be
	// considered corrupt or unreadable past this point.
	Critical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Error is the structured error returned by exported trajectory, frame
// set, block and codec operations.
type Error struct {
	Severity Severity
	Op       string // operation that failed, e.g. "block.read"
	Kind     error  // package sentinel, matched by errors.Is
	Msg      string // human-readable detail
	Err      error  // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Op
	if e.Kind != nil {
		s += ": " + e.Kind.Error()
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the error's kind or its cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// New builds an error with the given severity, operation and kind.
func New(sev Severity, op string, kind error, msg string) *Error {
	return &Error{Severity: sev, Op: op, Kind: kind, Msg: msg}
}

// Wrap builds an error around an underlying cause.
func Wrap(sev Severity, op string, kind error, err error) *Error {
	return &Error{Severity: sev, Op: op, Kind: kind, Err: err}
}

// Failuref builds a recoverable error with a formatted message.
func Failuref(op string, kind error, format string, args ...any) *Error {
	return &Error{Severity: Recoverable, Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Criticalf builds a critical error with a formatted message.
func Criticalf(op string, kind error, format string, args ...any) *Error {
	return &Error{Severity: Critical, Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsCritical reports whether err carries Critical severity.
func IsCritical(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Severity == Critical
}

// IsRecoverable reports whether err carries Recoverable severity.
func IsRecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Severity == Recoverable
}
