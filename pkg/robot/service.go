package robot

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/watchdog"
)

// Watchdog and button polling defaults.
const (
	DefaultWatchdogPeriod    = time.Second
	DefaultWatchdogThreshold = 5
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultPollAttempts      = 20
)

// EventType identifies a Service event.
type EventType string

const (
	// EventDevices follows a successful (re)initialization.
	EventDevices EventType = "devices"
	// EventMotors follows an accepted motor command.
	EventMotors EventType = "motors"
	// EventWatchdog follows a safety stop.
	EventWatchdog EventType = "watchdog"
)

// Event is a state change worth telling observers about.
type Event struct {
	Type    EventType   `json:"type"`
	Devices []string    `json:"devices,omitempty"`
	Motors  MotorStatus `json:"motors"`
	Reason  string      `json:"reason,omitempty"`
}

type motorCommand struct {
	Left, Right int
}

// Service is the robot facade. It owns the device registry and the motor
// watchdog: every accepted motor command arms the watchdog, and if no new
// command arrives within the timeout the motors are stopped.
//
// Motor commands, re-initialization and the watchdog's stop all run under
// the watchdog lock, so a stale stop can never undo a fresh command.
type Service struct {
	registry *device.Registry
	profile  Profile
	logger   *slog.Logger

	watchdog          *watchdog.Watchdog
	watchdogPeriod    time.Duration
	watchdogThreshold int

	pollInterval time.Duration
	pollAttempts int

	onEvent func(Event)

	// Guarded by the watchdog lock
	command motorCommand
}

// Option configures a Service.
type Option func(*Service)

// WithProfile selects the robot build. Defaults to Tracked.
func WithProfile(p Profile) Option {
	return func(s *Service) { s.profile = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithWatchdog sets the watchdog period and the number of silent periods
// tolerated before the motors are stopped.
func WithWatchdog(period time.Duration, threshold int) Option {
	return func(s *Service) {
		s.watchdogPeriod = period
		s.watchdogThreshold = threshold
	}
}

// WithButtonPolling sets how often and how many times the button waits poll.
func WithButtonPolling(interval time.Duration, attempts int) Option {
	return func(s *Service) {
		s.pollInterval = interval
		s.pollAttempts = attempts
	}
}

// WithEventHandler registers fn for state changes. fn may be called with
// internal locks held: it must not block or call back into the Service.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Service) { s.onEvent = fn }
}

// NewService acquires the robot's modules from backend and puts them in
// their idle state. An error other than a missing module is fatal and is
// returned as a *device.StartupError.
func NewService(backend device.Backend, opts ...Option) (*Service, error) {
	s := &Service{
		profile:           Tracked,
		watchdogPeriod:    DefaultWatchdogPeriod,
		watchdogThreshold: DefaultWatchdogThreshold,
		pollInterval:      DefaultPollInterval,
		pollAttempts:      DefaultPollAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Component("robot")
	}
	if s.pollAttempts < 1 {
		s.pollAttempts = 1
	}

	s.registry = device.NewRegistry(backend, s.logger)
	s.watchdog = watchdog.New(watchdog.Config{
		Name:      "motor-watchdog",
		Period:    s.watchdogPeriod,
		Threshold: s.watchdogThreshold,
		Mode:      watchdog.OneShot,
		Logger:    s.logger,
	}, s.expire)

	if err := s.registry.Initialize(); err != nil {
		return nil, err
	}
	s.logger.Info("robot ready",
		"profile", s.profile.Name,
		"devices", s.registry.Capabilities().String(),
		"watchdog", s.watchdog.Timeout())
	return s, nil
}

// Run drives the motor watchdog until ctx is cancelled or Close is called.
func (s *Service) Run(ctx context.Context) error {
	return s.watchdog.Run(ctx)
}

// Close stops the watchdog, stops the motors and releases the hardware.
func (s *Service) Close() error {
	s.watchdog.Stop()
	_ = s.watchdog.Update(func(st *watchdog.State) error {
		if tank, ok := s.handles().TankDrive(); ok {
			if err := tank.Stop(); err != nil {
				s.logger.Warn("failed to stop motors on close", "error", err)
			}
		}
		s.command = motorCommand{}
		st.Disarm()
		return nil
	})
	return s.registry.Close()
}

// Profile returns the robot build in use.
func (s *Service) Profile() Profile {
	return s.profile
}

// Capabilities returns the installed modules.
func (s *Service) Capabilities() device.CapabilitySet {
	return s.registry.Capabilities()
}

// WatchdogTimeout is the silence after which the motors are stopped.
func (s *Service) WatchdogTimeout() time.Duration {
	return s.watchdog.Timeout()
}

// Tick advances the motor watchdog by one period. Run calls it on a timer.
func (s *Service) Tick() bool {
	return s.watchdog.Tick()
}

func (s *Service) handles() *device.Handles {
	return s.registry.Handles()
}

func (s *Service) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// Devices returns the names of the installed modules in detection order.
func (s *Service) Devices() ([]string, error) {
	names := s.registry.Capabilities().Strings()
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Reinitialize re-detects the modules, stops the motors, turns the lights off
// and disarms the watchdog. On failure the previous modules stay in use.
func (s *Service) Reinitialize() ([]string, error) {
	err := s.watchdog.Update(func(st *watchdog.State) error {
		if err := s.registry.Initialize(); err != nil {
			return &Fault{Kind: FaultHardware, Message: "initialization failed", Err: err}
		}
		s.command = motorCommand{}
		st.Disarm()
		return nil
	})
	if err != nil {
		return nil, err
	}
	devices, _ := s.Devices()
	s.emit(Event{Type: EventDevices, Devices: devices, Reason: "init"})
	return devices, nil
}

// SetLights sets both indicator lights.
func (s *Service) SetLights(left, right device.LEDColor) error {
	lights, ok := s.handles().Lights()
	if !ok {
		return NotConnected(device.Lights)
	}
	if _, ok := device.ParseLEDColor(string(left)); !ok {
		return invalidArgument("invalid left_color %q", left)
	}
	if _, ok := device.ParseLEDColor(string(right)); !ok {
		return invalidArgument("invalid right_color %q", right)
	}
	if err := lights.SetColor(device.Left, left); err != nil {
		return hardwareFault(device.Lights, err)
	}
	if err := lights.SetColor(device.Right, right); err != nil {
		return hardwareFault(device.Lights, err)
	}
	return nil
}

func checkRange(name string, v, limit int) error {
	if v < -limit || v > limit {
		return invalidArgument("%s must be between %d and %d, got %d", name, -limit, limit, v)
	}
	return nil
}

// SetMotors drives the motors and (re)arms the watchdog. Out of range speeds
// are rejected without touching the motors or the watchdog.
func (s *Service) SetMotors(left, right int) error {
	if _, ok := s.handles().TankDrive(); !ok {
		return NotConnected(device.Motors)
	}
	if err := checkRange("left_speed", left, MaxSpeed); err != nil {
		return err
	}
	if err := checkRange("right_speed", right, MaxSpeed); err != nil {
		return err
	}

	var status MotorStatus
	err := s.watchdog.Update(func(st *watchdog.State) error {
		tank, ok := s.handles().TankDrive()
		if !ok {
			return NotConnected(device.Motors)
		}
		if err := s.drive(tank, left, right); err != nil {
			return hardwareFault(device.Motors, err)
		}
		s.command = motorCommand{Left: left, Right: right}
		st.Arm()
		status = s.status(*st)
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(Event{Type: EventMotors, Motors: status})
	return nil
}

func (s *Service) drive(tank device.TankDrive, left, right int) error {
	if left == 0 && right == 0 {
		return tank.Stop()
	}
	p := s.profile.polarity()
	return tank.Drive(left*p, right*p)
}

func (s *Service) status(st watchdog.State) MotorStatus {
	return MotorStatus{
		Left:  s.command.Left,
		Right: s.command.Right,
		Armed: st.Armed,
		Ticks: st.Ticks,
	}
}

// expire is the watchdog action. It runs with the watchdog lock held.
func (s *Service) expire() {
	prev := s.command
	if tank, ok := s.handles().TankDrive(); ok {
		if err := tank.Stop(); err != nil {
			s.logger.Error("watchdog failed to stop motors", "error", err)
		}
	}
	s.command = motorCommand{}
	s.logger.Warn("no motor command received, motors stopped",
		"left", prev.Left, "right", prev.Right, "timeout", s.watchdog.Timeout())
	s.emit(Event{Type: EventWatchdog, Reason: "expired"})
}

// GetMotors reports the active motor command and the watchdog state.
func (s *Service) GetMotors() (MotorStatus, error) {
	if _, ok := s.handles().TankDrive(); !ok {
		return MotorStatus{}, NotConnected(device.Motors)
	}
	var status MotorStatus
	_ = s.watchdog.Update(func(st *watchdog.State) error {
		status = s.status(*st)
		return nil
	})
	return status, nil
}

// SetHead turns the head to position (-100 full left .. 100 full right).
func (s *Service) SetHead(position int) error {
	head, ok := s.handles().Head()
	if !ok {
		return NotConnected(device.Head)
	}
	if err := checkRange("position", position, MaxHeadPosition); err != nil {
		return err
	}
	degrees := int(math.Round(float64(position) * s.profile.HeadDegreesPerStep))
	if err := head.MoveTo(degrees, s.profile.HeadSpeed); err != nil {
		return hardwareFault(device.Head, err)
	}
	return nil
}

// Speak says text after trimming it to MaxSpeechLength characters and
// dropping anything that is not printable ASCII.
func (s *Service) Speak(text string) error {
	speech, ok := s.handles().Speech()
	if !ok {
		return NotConnected(device.Speaker)
	}
	if err := speech.Speak(SanitizeSpeech(text)); err != nil {
		return hardwareFault(device.Speaker, err)
	}
	return nil
}

// GetButton reports whether the button is pressed.
func (s *Service) GetButton() (bool, error) {
	touch, ok := s.handles().TouchSensor()
	if !ok {
		return false, NotConnected(device.Button)
	}
	pressed, err := touch.Pressed()
	if err != nil {
		return false, hardwareFault(device.Button, err)
	}
	return pressed, nil
}

// WaitButtonPressed polls the button for a bounded time and reports whether
// it was seen pressed.
func (s *Service) WaitButtonPressed() (bool, error) {
	return s.AwaitButton(context.Background(), true)
}

// WaitButtonReleased polls the button for a bounded time and reports whether
// it was seen released.
func (s *Service) WaitButtonReleased() (bool, error) {
	return s.AwaitButton(context.Background(), false)
}

// AwaitButton polls the button until it reads want, the attempts run out or
// ctx is done. Running out of attempts is not an error.
func (s *Service) AwaitButton(ctx context.Context, want bool) (bool, error) {
	touch, ok := s.handles().TouchSensor()
	if !ok {
		return false, NotConnected(device.Button)
	}

	for i := 0; i < s.pollAttempts; i++ {
		pressed, err := touch.Pressed()
		if err != nil {
			return false, hardwareFault(device.Button, err)
		}
		if pressed == want {
			return true, nil
		}
		if i == s.pollAttempts-1 {
			break
		}
		if err := sleep(ctx, s.pollInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// GetColor reads the color sensor.
func (s *Service) GetColor() (string, error) {
	sensor, ok := s.handles().ColorSensor()
	if !ok {
		return "", NotConnected(device.Color)
	}
	code, err := sensor.ColorCode()
	if err != nil {
		return "", hardwareFault(device.Color, err)
	}
	return ColorName(code), nil
}

// GetDistance reads the proximity sensor in centimetres.
func (s *Service) GetDistance() (int, error) {
	sensor, ok := s.handles().ProximitySensor()
	if !ok {
		return 0, NotConnected(device.Distance)
	}
	raw, err := sensor.Proximity()
	if err != nil {
		return 0, hardwareFault(device.Distance, err)
	}
	return DistanceCM(raw), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
