package ev3dev

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/device"
)

// fakeTree builds a sysfs-like directory for tests
type fakeTree struct {
	t    *testing.T
	root string
}

func newFakeTree(t *testing.T) *fakeTree {
	return &fakeTree{t: t, root: t.TempDir()}
}

func (f *fakeTree) add(class, name string, attrs map[string]string) {
	f.t.Helper()
	dir := filepath.Join(f.root, class, name)
	require.NoError(f.t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(f.t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func (f *fakeTree) read(class, name, attr string) string {
	f.t.Helper()
	b, err := os.ReadFile(filepath.Join(f.root, class, name, attr))
	require.NoError(f.t, err)
	return strings.TrimSpace(string(b))
}

func (f *fakeTree) motor(name, port string) {
	f.add(classMotors, name, map[string]string{
		"address":     "ev3-ports:" + port,
		"driver_name": "lego-ev3-l-motor",
		"max_speed":   "1050",
		"command":     "",
		"speed_sp":    "0",
		"position_sp": "0",
	})
}

func (f *fakeTree) sensor(name, port, driver, mode, value string) {
	f.add(classSensor, name, map[string]string{
		"address":     "ev3-ports:" + port,
		"driver_name": driver,
		"mode":        mode,
		"value0":      value,
	})
}

func (f *fakeTree) leds() {
	for _, pair := range ledNames {
		for _, name := range pair {
			f.add(classLEDs, name, map[string]string{"max_brightness": "255", "brightness": "0"})
		}
	}
}

func trackedPorts() device.Ports {
	return device.Ports{LeftMotor: "outA", RightMotor: "outD", Touch: "in1", Color: "in3", Proximity: "in4"}
}

func TestTankDrive(t *testing.T) {
	tree := newFakeTree(t)
	tree.motor("motor0", "outA")
	tree.motor("motor1", "outD")
	b := New(tree.root, trackedPorts(), WithLogger(log.Nop()))

	tank, err := b.TankDrive()
	require.NoError(t, err)

	require.NoError(t, tank.Drive(50, -100))
	assert.Equal(t, "525", tree.read(classMotors, "motor0", "speed_sp"))
	assert.Equal(t, "-1050", tree.read(classMotors, "motor1", "speed_sp"))
	assert.Equal(t, cmdRunForever, tree.read(classMotors, "motor0", "command"))

	require.NoError(t, tank.Stop())
	assert.Equal(t, cmdStop, tree.read(classMotors, "motor0", "command"))
	assert.Equal(t, cmdStop, tree.read(classMotors, "motor1", "command"))
}

func TestTankDrive_MissingMotorIsAbsent(t *testing.T) {
	tree := newFakeTree(t)
	tree.motor("motor0", "outA")
	b := New(tree.root, trackedPorts())

	_, err := b.TankDrive()
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestHead(t *testing.T) {
	tree := newFakeTree(t)
	tree.motor("motor2", "outA")
	b := New(tree.root, device.Ports{Head: "outA"})

	h, err := b.Head()
	require.NoError(t, err)
	require.NoError(t, h.MoveTo(-40, 20))
	assert.Equal(t, "-40", tree.read(classMotors, "motor2", "position_sp"))
	assert.Equal(t, "210", tree.read(classMotors, "motor2", "speed_sp"))
	assert.Equal(t, cmdRunToAbsPos, tree.read(classMotors, "motor2", "command"))

	_, err = New(tree.root, device.Ports{}).Head()
	assert.ErrorIs(t, err, device.ErrNotFound, "unconfigured port")
}

func TestSensors(t *testing.T) {
	tree := newFakeTree(t)
	tree.sensor("sensor0", "in1", driverTouch, modeTouch, "1")
	tree.sensor("sensor1", "in3", driverColor, "COL-REFLECT", "5")
	tree.sensor("sensor2", "in4", driverIR, modeProx, "60")
	b := New(tree.root, trackedPorts())

	touch, err := b.TouchSensor()
	require.NoError(t, err)
	pressed, err := touch.Pressed()
	require.NoError(t, err)
	assert.True(t, pressed)

	color, err := b.ColorSensor()
	require.NoError(t, err)
	assert.Equal(t, modeColor, tree.read(classSensor, "sensor1", "mode"), "mode switched")
	code, err := color.ColorCode()
	require.NoError(t, err)
	assert.Equal(t, 5, code)

	prox, err := b.ProximitySensor()
	require.NoError(t, err)
	v, err := prox.Proximity()
	require.NoError(t, err)
	assert.Equal(t, 60, v)
}

func TestSensor_WrongDriverIsMisconfiguration(t *testing.T) {
	tree := newFakeTree(t)
	tree.sensor("sensor0", "in1", driverColor, modeColor, "0")
	b := New(tree.root, trackedPorts())

	_, err := b.TouchSensor()
	require.Error(t, err)
	assert.NotErrorIs(t, err, device.ErrNotFound)
}

func TestLights(t *testing.T) {
	tree := newFakeTree(t)
	tree.leds()
	b := New(tree.root, device.Ports{})

	lights, err := b.Lights()
	require.NoError(t, err)
	require.NoError(t, lights.SetColor(device.Left, device.Amber))
	require.NoError(t, lights.SetColor(device.Right, device.Orange))

	assert.Equal(t, "255", tree.read(classLEDs, "led0:red:brick-status", "brightness"))
	assert.Equal(t, "255", tree.read(classLEDs, "led0:green:brick-status", "brightness"))
	assert.Equal(t, "255", tree.read(classLEDs, "led1:red:brick-status", "brightness"))
	assert.Equal(t, "128", tree.read(classLEDs, "led1:green:brick-status", "brightness"))

	_, err = New(t.TempDir(), device.Ports{}).Lights()
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestSpeech_MissingSynthIsAbsent(t *testing.T) {
	b := New(t.TempDir(), device.Ports{}, WithSpeech(SpeechConfig{
		Synth:  []string{"no-such-synth-binary"},
		Player: []string{"no-such-player-binary"},
	}))
	_, err := b.Speech()
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestRegistryOverSysfs(t *testing.T) {
	tree := newFakeTree(t)
	tree.leds()
	tree.motor("motor0", "outA")
	tree.motor("motor1", "outD")
	tree.sensor("sensor2", "in4", driverIR, modeProx, "10")

	b := New(tree.root, trackedPorts(), WithSpeech(SpeechConfig{}))
	reg := device.NewRegistry(b, log.Nop())
	require.NoError(t, reg.Initialize())
	defer reg.Close()

	assert.Equal(t, []string{"Lights", "Motors", "Distance"}, reg.Capabilities().Strings())
	assert.Equal(t, cmdStop, tree.read(classMotors, "motor0", "command"), "idled on init")
}
