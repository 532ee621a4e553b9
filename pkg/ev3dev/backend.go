// Package ev3dev is the hardware backend for a LEGO EV3 brick running
// ev3dev. It drives motors, sensors and LEDs through the sysfs class tree and
// speaks through espeak.
package ev3dev

import (
	"log/slog"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/device"
)

// DefaultRoot is where ev3dev mounts its device classes.
const DefaultRoot = "/sys/class"

// Backend implements device.Backend over an ev3dev sysfs tree.
type Backend struct {
	root   string
	ports  device.Ports
	speech SpeechConfig
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithSpeech replaces the espeak/aplay pipeline.
func WithSpeech(cfg SpeechConfig) Option {
	return func(b *Backend) { b.speech = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// New creates a backend reading devices under root (DefaultRoot when empty)
// at the given ports.
func New(root string, ports device.Ports, opts ...Option) *Backend {
	if root == "" {
		root = DefaultRoot
	}
	b := &Backend{root: root, ports: ports, speech: DefaultSpeech}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.Component("ev3dev")
	}
	return b
}

var _ device.Backend = (*Backend)(nil)

// Lights opens the brick's two status LEDs.
func (b *Backend) Lights() (device.IndicatorLights, error) {
	return openLights(b.root)
}

// TankDrive opens the left and right drive motors. Both must be present.
func (b *Backend) TankDrive() (device.TankDrive, error) {
	left, err := openMotor(b.root, b.ports.LeftMotor)
	if err != nil {
		return nil, err
	}
	right, err := openMotor(b.root, b.ports.RightMotor)
	if err != nil {
		return nil, err
	}
	return &tank{left: left, right: right}, nil
}

// Head opens the head motor.
func (b *Backend) Head() (device.HeadMotor, error) {
	m, err := openMotor(b.root, b.ports.Head)
	if err != nil {
		return nil, err
	}
	return head{m: m}, nil
}

// Speech checks the synthesizer is installed.
func (b *Backend) Speech() (device.Speech, error) {
	return openSpeech(b.speech)
}

// TouchSensor opens the touch sensor.
func (b *Backend) TouchSensor() (device.TouchSensor, error) {
	s, err := openSensor(b.root, b.ports.Touch, driverTouch, modeTouch)
	if err != nil {
		return nil, err
	}
	return touch{s}, nil
}

// ColorSensor opens the color sensor in color-code mode.
func (b *Backend) ColorSensor() (device.ColorSensor, error) {
	s, err := openSensor(b.root, b.ports.Color, driverColor, modeColor)
	if err != nil {
		return nil, err
	}
	return color{s}, nil
}

// ProximitySensor opens the infrared sensor in proximity mode.
func (b *Backend) ProximitySensor() (device.ProximitySensor, error) {
	s, err := openSensor(b.root, b.ports.Proximity, driverIR, modeProx)
	if err != nil {
		return nil, err
	}
	return proximity{s}, nil
}
