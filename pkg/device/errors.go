package device

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when a module is not installed.
var ErrNotFound = errors.New("device: not found")

// StartupError is a module construction failure other than "not found".
// It aborts initialization.
type StartupError struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("device [%s]: startup failed: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with context about what was looked for.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
