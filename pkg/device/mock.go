package device

import (
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Backend for tests and for running the server away
// from a robot. Present kinds, sensor readings and failures are set by the
// caller; every primitive hardware call is recorded.
type Mock struct {
	mu sync.Mutex

	present  map[Kind]bool
	acquire  map[Kind]error // acquisition failures
	failures map[Kind]error // primitive call failures

	leds      map[Side]LEDColor
	left      int
	right     int
	head      int
	spoken    []string
	pressed   bool
	colorCode int
	proximity int

	calls []MockCall
}

// MockCall records one primitive hardware call.
type MockCall struct {
	Kind Kind
	Op   string
	Args []any
	Time time.Time
}

// NewMock creates a mock robot with the given kinds installed.
func NewMock(kinds ...Kind) *Mock {
	m := &Mock{
		present:  make(map[Kind]bool),
		acquire:  make(map[Kind]error),
		failures: make(map[Kind]error),
		leds:     map[Side]LEDColor{Left: Black, Right: Black},
	}
	for _, k := range kinds {
		m.present[k] = true
	}
	return m
}

// NewFullMock creates a mock robot with every kind installed.
func NewFullMock() *Mock {
	return NewMock(AllKinds()...)
}

// SetPresent installs or removes a module. It takes effect on the next
// Registry.Initialize.
func (m *Mock) SetPresent(kind Kind, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present[kind] = present
}

// FailAcquire makes the constructor for kind return err.
func (m *Mock) FailAcquire(kind Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquire[kind] = err
}

// FailCalls makes every primitive call on kind return err. A nil err clears it.
func (m *Mock) FailCalls(kind Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind] = err
}

// SetButton sets the touch sensor state.
func (m *Mock) SetButton(pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pressed = pressed
}

// SetColorCode sets the raw color sensor reading.
func (m *Mock) SetColorCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colorCode = code
}

// SetProximity sets the raw proximity reading.
func (m *Mock) SetProximity(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proximity = v
}

// Drive returns the last applied motor speeds.
func (m *Mock) Drive() (left, right int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.left, m.right
}

// LED returns the color currently shown on side.
func (m *Mock) LED(side Side) LEDColor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leds[side]
}

// HeadPosition returns the last head target in degrees.
func (m *Mock) HeadPosition() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head
}

// Spoken returns every line passed to the speaker.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Calls returns the recorded primitive calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded primitive calls on kind.
func (m *Mock) CallsFor(kind Kind) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (m *Mock) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// record logs a call and returns the injected failure for kind, if any.
// Callers hold m.mu.
func (m *Mock) record(kind Kind, op string, args ...any) error {
	m.calls = append(m.calls, MockCall{Kind: kind, Op: op, Args: args, Time: time.Now()})
	return m.failures[kind]
}

func (m *Mock) construct(kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.acquire[kind]; err != nil {
		return err
	}
	if !m.present[kind] {
		return NotFound("mock %s", kind)
	}
	return nil
}

// Lights implements Backend.
func (m *Mock) Lights() (IndicatorLights, error) {
	if err := m.construct(Lights); err != nil {
		return nil, err
	}
	return mockLights{m}, nil
}

// TankDrive implements Backend.
func (m *Mock) TankDrive() (TankDrive, error) {
	if err := m.construct(Motors); err != nil {
		return nil, err
	}
	return mockTank{m}, nil
}

// Head implements Backend.
func (m *Mock) Head() (HeadMotor, error) {
	if err := m.construct(Head); err != nil {
		return nil, err
	}
	return mockHead{m}, nil
}

// Speech implements Backend.
func (m *Mock) Speech() (Speech, error) {
	if err := m.construct(Speaker); err != nil {
		return nil, err
	}
	return mockSpeech{m}, nil
}

// TouchSensor implements Backend.
func (m *Mock) TouchSensor() (TouchSensor, error) {
	if err := m.construct(Button); err != nil {
		return nil, err
	}
	return mockTouch{m}, nil
}

// ColorSensor implements Backend.
func (m *Mock) ColorSensor() (ColorSensor, error) {
	if err := m.construct(Color); err != nil {
		return nil, err
	}
	return mockColor{m}, nil
}

// ProximitySensor implements Backend.
func (m *Mock) ProximitySensor() (ProximitySensor, error) {
	if err := m.construct(Distance); err != nil {
		return nil, err
	}
	return mockProximity{m}, nil
}

type mockLights struct{ m *Mock }

func (l mockLights) SetColor(side Side, color LEDColor) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if err := l.m.record(Lights, "set_color", side, color); err != nil {
		return err
	}
	if side != Left && side != Right {
		return fmt.Errorf("mock: unknown side %q", side)
	}
	l.m.leds[side] = color
	return nil
}

type mockTank struct{ m *Mock }

func (t mockTank) Drive(left, right int) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.record(Motors, "drive", left, right); err != nil {
		return err
	}
	t.m.left, t.m.right = left, right
	return nil
}

func (t mockTank) Stop() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.record(Motors, "stop"); err != nil {
		return err
	}
	t.m.left, t.m.right = 0, 0
	return nil
}

type mockHead struct{ m *Mock }

func (h mockHead) MoveTo(degrees, speed int) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if err := h.m.record(Head, "move_to", degrees, speed); err != nil {
		return err
	}
	h.m.head = degrees
	return nil
}

type mockSpeech struct{ m *Mock }

func (s mockSpeech) Speak(text string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.record(Speaker, "speak", text); err != nil {
		return err
	}
	s.m.spoken = append(s.m.spoken, text)
	return nil
}

type mockTouch struct{ m *Mock }

func (t mockTouch) Pressed() (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.record(Button, "pressed"); err != nil {
		return false, err
	}
	return t.m.pressed, nil
}

type mockColor struct{ m *Mock }

func (c mockColor) ColorCode() (int, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.m.record(Color, "color_code"); err != nil {
		return 0, err
	}
	return c.m.colorCode, nil
}

type mockProximity struct{ m *Mock }

func (p mockProximity) Proximity() (int, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if err := p.m.record(Distance, "proximity"); err != nil {
		return 0, err
	}
	return p.m.proximity, nil
}

// Ensure Mock implements Backend
var _ Backend = (*Mock)(nil)
