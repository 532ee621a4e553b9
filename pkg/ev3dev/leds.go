package ev3dev

import (
	"math"
	"path/filepath"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// ledNames maps a side to its red and green LED directories
var ledNames = map[device.Side][2]string{
	device.Left:  {"led0:red:brick-status", "led0:green:brick-status"},
	device.Right: {"led1:red:brick-status", "led1:green:brick-status"},
}

type led struct {
	dir attr
	max int
}

func (l led) set(fraction float64) error {
	return l.dir.writeInt("brightness", int(math.Round(fraction*float64(l.max))))
}

type lights struct {
	leds map[device.Side][2]led
}

func openLights(root string) (*lights, error) {
	l := &lights{leds: make(map[device.Side][2]led)}
	for side, names := range ledNames {
		var pair [2]led
		for i, name := range names {
			dir := attr(filepath.Join(root, classLEDs, name))
			full, err := dir.readInt("max_brightness")
			if err != nil {
				return nil, device.NotFound("led %s: %v", name, err)
			}
			pair[i] = led{dir: dir, max: full}
		}
		l.leds[side] = pair
	}
	return l, nil
}

func (l *lights) SetColor(side device.Side, c device.LEDColor) error {
	pair, ok := l.leds[side]
	if !ok {
		return device.NotFound("led side %s", side)
	}
	red, green := c.Brightness()
	if err := pair[0].set(red); err != nil {
		return err
	}
	return pair[1].set(green)
}
