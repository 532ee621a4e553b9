package robot

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// Sentinel errors for the application-level fault kinds. Compare with
// errors.Is; every *Fault matches the sentinel of its kind.
var (
	// ErrNotConnected means the device an operation needs is not installed.
	ErrNotConnected = errors.New("robot: device not connected")

	// ErrInvalidArgument means an argument was out of range or malformed.
	// Nothing reached the hardware.
	ErrInvalidArgument = errors.New("robot: invalid argument")

	// ErrUnsupported is returned by a client for an operation the robot
	// cannot perform. No network call was made.
	ErrUnsupported = errors.New("robot: operation unsupported on this robot")

	// ErrUnknownMethod means the server has no such operation.
	ErrUnknownMethod = errors.New("robot: unknown method")

	// ErrHardware means a present device failed while executing a command.
	ErrHardware = errors.New("robot: hardware fault")
)

// FaultKind is the wire name of a fault category.
type FaultKind string

// Fault kinds.
const (
	FaultNotConnected    FaultKind = "not_connected"
	FaultInvalidArgument FaultKind = "invalid_argument"
	FaultUnsupported     FaultKind = "unsupported"
	FaultUnknownMethod   FaultKind = "unknown_method"
	FaultHardware        FaultKind = "hardware"
	FaultInternal        FaultKind = "internal"
)

func (k FaultKind) sentinel() error {
	switch k {
	case FaultNotConnected:
		return ErrNotConnected
	case FaultInvalidArgument:
		return ErrInvalidArgument
	case FaultUnsupported:
		return ErrUnsupported
	case FaultUnknownMethod:
		return ErrUnknownMethod
	case FaultHardware:
		return ErrHardware
	default:
		return nil
	}
}

// Fault is an application-level failure: the request reached the robot (or
// the client) and was refused or could not be carried out.
type Fault struct {
	Kind    FaultKind
	Message string
	Err     error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

// Is matches the sentinel error for the fault's kind.
func (f *Fault) Is(target error) bool {
	s := f.Kind.sentinel()
	return s != nil && target == s
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Faultf builds a Fault with a formatted message.
func Faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotConnected reports that kind is absent.
func NotConnected(kind device.Kind) *Fault {
	return Faultf(FaultNotConnected, "%s not connected", kind)
}

// KindOf classifies err into a fault kind. Errors that are not faults are
// internal.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	switch {
	case errors.Is(err, ErrNotConnected), errors.Is(err, device.ErrNotFound):
		return FaultNotConnected
	case errors.Is(err, ErrInvalidArgument):
		return FaultInvalidArgument
	case errors.Is(err, ErrUnsupported):
		return FaultUnsupported
	case errors.Is(err, ErrUnknownMethod):
		return FaultUnknownMethod
	case errors.Is(err, ErrHardware):
		return FaultHardware
	default:
		return FaultInternal
	}
}

func invalidArgument(format string, args ...any) *Fault {
	return Faultf(FaultInvalidArgument, format, args...)
}

func hardwareFault(kind device.Kind, err error) error {
	// A handle that vanished under us reads as absent
	if errors.Is(err, device.ErrNotFound) {
		return &Fault{Kind: FaultNotConnected, Message: fmt.Sprintf("%s not connected", kind), Err: err}
	}
	return &Fault{Kind: FaultHardware, Message: fmt.Sprintf("%s failed", kind), Err: err}
}
