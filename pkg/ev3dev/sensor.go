package ev3dev

import "fmt"

// Sensor drivers and the modes this backend reads them in
const (
	driverTouch = "lego-ev3-touch"
	driverColor = "lego-ev3-color"
	driverIR    = "lego-ev3-ir"

	modeTouch = "TOUCH"
	modeColor = "COL-COLOR"
	modeProx  = "IR-PROX"
)

type sensor struct {
	dir attr
}

// openSensor finds a sensor and puts it in mode
func openSensor(root, port, driver, mode string) (sensor, error) {
	dir, err := find(root, classSensor, port, driver)
	if err != nil {
		return sensor{}, err
	}
	current, err := dir.read("mode")
	if err != nil {
		return sensor{}, err
	}
	if current != mode {
		if err := dir.write("mode", mode); err != nil {
			return sensor{}, fmt.Errorf("sensor on %s: set mode %s: %w", port, mode, err)
		}
	}
	return sensor{dir: dir}, nil
}

func (s sensor) value() (int, error) {
	return s.dir.readInt("value0")
}

type touch struct{ sensor }

func (t touch) Pressed() (bool, error) {
	v, err := t.value()
	return v != 0, err
}

type color struct{ sensor }

func (c color) ColorCode() (int, error) {
	return c.value()
}

type proximity struct{ sensor }

func (p proximity) Proximity() (int, error) {
	return p.value()
}
