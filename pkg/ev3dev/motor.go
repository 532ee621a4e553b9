package ev3dev

import (
	"fmt"
	"sync"
)

// Tacho motor commands
const (
	cmdRunForever  = "run-forever"
	cmdRunToAbsPos = "run-to-abs-pos"
	cmdStop        = "stop"
)

// tachoDrivers are the motor drivers this backend accepts
var tachoDrivers = []string{"lego-ev3-l-motor", "lego-ev3-m-motor"}

type motor struct {
	dir      attr
	maxSpeed int
}

func openMotor(root, port string) (*motor, error) {
	dir, err := find(root, classMotors, port, tachoDrivers...)
	if err != nil {
		return nil, err
	}
	maxSpeed, err := dir.readInt("max_speed")
	if err != nil {
		return nil, err
	}
	if maxSpeed <= 0 {
		return nil, fmt.Errorf("motor on %s reports max_speed %d", port, maxSpeed)
	}
	return &motor{dir: dir, maxSpeed: maxSpeed}, nil
}

// speed converts a percentage to tacho counts per second
func (m *motor) speed(percent int) int {
	return percent * m.maxSpeed / 100
}

func (m *motor) run(percent int) error {
	if err := m.dir.writeInt("speed_sp", m.speed(percent)); err != nil {
		return err
	}
	return m.dir.write("command", cmdRunForever)
}

func (m *motor) stop() error {
	return m.dir.write("command", cmdStop)
}

func (m *motor) moveTo(degrees, percent int) error {
	if err := m.dir.writeInt("speed_sp", m.speed(percent)); err != nil {
		return err
	}
	if err := m.dir.writeInt("position_sp", degrees); err != nil {
		return err
	}
	return m.dir.write("command", cmdRunToAbsPos)
}

// tank drives two motors as a pair
type tank struct {
	mu          sync.Mutex
	left, right *motor
}

func (t *tank) Drive(left, right int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.left.run(left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := t.right.run(right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

func (t *tank) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	lerr := t.left.stop()
	rerr := t.right.stop()
	if lerr != nil {
		return fmt.Errorf("left motor: %w", lerr)
	}
	if rerr != nil {
		return fmt.Errorf("right motor: %w", rerr)
	}
	return nil
}

// Close stops both motors.
func (t *tank) Close() error {
	return t.Stop()
}

type head struct {
	m *motor
}

func (h head) MoveTo(degrees, speed int) error {
	return h.m.moveTo(degrees, speed)
}
