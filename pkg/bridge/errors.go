package bridge

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-legobot/pkg/robot"
)

// FaultError is an application-level failure reported by the robot: the call
// arrived and was refused. It unwraps to a *robot.Fault, so errors.Is works
// against the robot sentinels.
type FaultError struct {
	Method  string
	Kind    robot.FaultKind
	Message string
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// Unwrap returns the equivalent robot fault.
func (e *FaultError) Unwrap() error {
	return &robot.Fault{Kind: e.Kind, Message: e.Message}
}

// TransportError means the call may not have reached the robot: the
// connection failed, timed out, or the reply was not a valid response.
type TransportError struct {
	Method string
	Op     string // "dial", "send", "receive", "decode"
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Method, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsFault reports whether err is an application-level fault from the robot.
func IsFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}

func transportErr(method, op string, err error) error {
	return &TransportError{Method: method, Op: op, Err: err}
}
