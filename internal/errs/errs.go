// Package errs defines the error taxonomy shared by the engine, the store,
// and the session orchestrator.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown learner, topic, or misconception.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput reports a malformed argument: an unknown bloom level or
	// error type, an empty topic name, or a cyclic topic graph.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict reports a write that collided with existing state. Duplicate
	// topic adds are downgraded to warnings and never surface this error.
	ErrConflict = errors.New("conflict")
)

// NotFound wraps ErrNotFound with a description of what was missing.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidInput wraps ErrInvalidInput with a description of the bad argument.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Kind returns the taxonomy name of err: "not_found", "invalid_input",
// "conflict", or "internal" for anything else.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
