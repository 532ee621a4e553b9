package device

// Side selects one of the two indicator lights.
type Side string

const (
	Left  Side = "LEFT"
	Right Side = "RIGHT"
)

// LEDColor is one of the colors an indicator light can show.
type LEDColor string

// Indicator colors. BLACK turns a light off.
const (
	Black  LEDColor = "BLACK"
	Red    LEDColor = "RED"
	Green  LEDColor = "GREEN"
	Amber  LEDColor = "AMBER"
	Orange LEDColor = "ORANGE"
	Yellow LEDColor = "YELLOW"
)

// LEDColors returns every indicator color in a stable order.
func LEDColors() []LEDColor {
	return []LEDColor{Black, Red, Green, Amber, Orange, Yellow}
}

// ParseLEDColor validates a color name.
func ParseLEDColor(name string) (LEDColor, bool) {
	for _, c := range LEDColors() {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Brightness returns the red and green channel levels (0..1) of a two-channel
// indicator for c.
func (c LEDColor) Brightness() (red, green float64) {
	switch c {
	case Red:
		return 1, 0
	case Green:
		return 0, 1
	case Amber:
		return 1, 1
	case Orange:
		return 1, 0.5
	case Yellow:
		return 0.1, 1
	default:
		return 0, 0
	}
}

// The interfaces below are the primitive operations a hardware backend
// offers. Each call either succeeds or fails; none of them blocks for long.

// IndicatorLights drives the left and right status lights.
type IndicatorLights interface {
	SetColor(side Side, color LEDColor) error
}

// TankDrive drives the two track/wheel motors at signed percentage speeds.
type TankDrive interface {
	Drive(left, right int) error
	Stop() error
}

// HeadMotor moves the head to an absolute position in motor degrees at a
// percentage speed.
type HeadMotor interface {
	MoveTo(degrees, speed int) error
}

// Speech speaks a line of text.
type Speech interface {
	Speak(text string) error
}

// TouchSensor reads a digital button.
type TouchSensor interface {
	Pressed() (bool, error)
}

// ColorSensor reads a raw color code.
type ColorSensor interface {
	ColorCode() (int, error)
}

// ProximitySensor reads a raw proximity value (0 near .. 100 far).
type ProximitySensor interface {
	Proximity() (int, error)
}

// Backend constructs a handle for each module. A constructor returns an
// error matching ErrNotFound when the module is not installed; any other
// error means the robot is misconfigured.
type Backend interface {
	Lights() (IndicatorLights, error)
	TankDrive() (TankDrive, error)
	Head() (HeadMotor, error)
	Speech() (Speech, error)
	TouchSensor() (TouchSensor, error)
	ColorSensor() (ColorSensor, error)
	ProximitySensor() (ProximitySensor, error)
}

// Ports names where each module is plugged in. An empty port means the
// module is not part of the build and is reported absent.
type Ports struct {
	LeftMotor  string `json:"left_motor,omitempty"`
	RightMotor string `json:"right_motor,omitempty"`
	Head       string `json:"head,omitempty"`
	Touch      string `json:"touch,omitempty"`
	Color      string `json:"color,omitempty"`
	Proximity  string `json:"proximity,omitempty"`
}
