package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandNotFound is returned when an external binary cannot be located.
	ErrCommandNotFound = errors.New("command not found")

	// ErrTimeout is returned when an external command exceeds its time budget.
	// The whole process group has been killed by the time the caller sees it.
	ErrTimeout = errors.New("command timed out")

	// ErrNotFound signals that the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMonitoringUnavailable wraps transport and status failures of the
	// monitoring API.
	ErrMonitoringUnavailable = errors.New("monitoring api unavailable")
)

// ValidationError rejects an identifier before any external process is spawned.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// CommandFailedError is returned when an external command exits non-zero.
// Detail carries stderr, or stdout when stderr was empty.
type CommandFailedError struct {
	Argv     []string
	ExitCode int
	Detail   string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Detail)
}

// Command returns the argv joined with spaces, for logging.
func (e *CommandFailedError) Command() string {
	return strings.Join(e.Argv, " ")
}

// ParseError reports malformed data received from an upstream source.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AsCommandFailed unwraps err into a *CommandFailedError when possible.
func AsCommandFailed(err error) (*CommandFailedError, bool) {
	var cf *CommandFailedError
	if errors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}
