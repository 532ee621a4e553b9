package ev3dev

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// Device classes under <root>/class
const (
	classLEDs   = "leds"
	classMotors = "tacho-motor"
	classSensor = "lego-sensor"
)

// attr is one sysfs device directory
type attr string

func (d attr) path(name string) string {
	return filepath.Join(string(d), name)
}

func (d attr) read(name string) (string, error) {
	b, err := os.ReadFile(d.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (d attr) readInt(name string) (int, error) {
	s, err := d.read(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d.path(name), err)
	}
	return v, nil
}

// write sets an attribute. sysfs attributes are opened write-only and never
// created.
func (d attr) write(name, value string) error {
	f, err := os.OpenFile(d.path(name), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", d.path(name), err)
	}
	return f.Close()
}

func (d attr) writeInt(name string, v int) error {
	return d.write(name, strconv.Itoa(v))
}

// find returns the device of class plugged into port. An empty port or no
// match is ErrNotFound. If drivers is not empty the device's driver must be
// one of them.
func find(root, class, port string, drivers ...string) (attr, error) {
	if port == "" {
		return "", device.NotFound("%s: no port configured", class)
	}

	dirs, err := filepath.Glob(filepath.Join(root, class, "*"))
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		d := attr(dir)
		address, err := d.read("address")
		if err != nil || !matchPort(address, port) {
			continue
		}
		if len(drivers) == 0 {
			return d, nil
		}
		driver, err := d.read("driver_name")
		if err != nil {
			return "", err
		}
		for _, want := range drivers {
			if driver == want {
				return d, nil
			}
		}
		return "", fmt.Errorf("%s on %s is a %s, want %s", class, port, driver, strings.Join(drivers, " or "))
	}
	return "", device.NotFound("%s on %s", class, port)
}

// matchPort accepts a bare port name ("outA") or a full address
// ("ev3-ports:outA").
func matchPort(address, port string) bool {
	return address == port || strings.HasSuffix(address, ":"+port)
}
