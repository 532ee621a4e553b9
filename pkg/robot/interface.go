// Package robot provides the operation surface of a LEGO robot: one facade
// over whatever modules are installed, and the interfaces a remote client
// implements to look the same.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

import "github.com/teslashibe/go-legobot/pkg/device"

// DeviceLister reports which modules the robot has.
type DeviceLister interface {
	Devices() ([]string, error)
}

// LightsController sets the two indicator lights.
type LightsController interface {
	SetLights(left, right device.LEDColor) error
}

// DriveController commands the drive motors. Speeds are percentages in
// [-100, 100]; positive is forwards on every build.
type DriveController interface {
	SetMotors(left, right int) error
}

// MotorReader reports the last motor command and the safety timer state.
type MotorReader interface {
	GetMotors() (MotorStatus, error)
}

// HeadController turns the head to a position in [-100, 100].
type HeadController interface {
	SetHead(position int) error
}

// SpeechController speaks a line of text.
type SpeechController interface {
	Speak(text string) error
}

// SensorReader reads the robot's sensors.
type SensorReader interface {
	GetButton() (bool, error)
	GetColor() (string, error)
	GetDistance() (int, error)
}

// ButtonWaiter waits a short, bounded time for the button to change.
type ButtonWaiter interface {
	WaitButtonPressed() (bool, error)
	WaitButtonReleased() (bool, error)
}

// Controller is the composite interface for full robot control.
// The local Service and the remote client both implement it.
type Controller interface {
	DeviceLister
	LightsController
	DriveController
	MotorReader
	HeadController
	SpeechController
	SensorReader
	ButtonWaiter
}

// MotorStatus is the result of get_motors.
type MotorStatus struct {
	Left  int  `json:"left"`
	Right int  `json:"right"`
	Armed bool `json:"armed"`
	Ticks int  `json:"ticks"`
}

// Ensure Service implements Controller
var _ Controller = (*Service)(nil)
