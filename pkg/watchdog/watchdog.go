// Package watchdog implements the motor safety timer shared by the robot
// server and the remote client.
//
// A Watchdog is a small state machine {Armed, Ticks} advanced by a periodic
// task. While armed, each period adds a tick; once the count exceeds the
// threshold the configured action runs. What happens next depends on the mode:
//
//   - OneShot (server, enforcer): the watchdog disarms after the action. Used
//     to stop the motors after a period of silence.
//   - Repeat (client, sustainer): the tick count resets and the watchdog stays
//     armed. Used to re-send the last motor command every period.
//
// The action and every Update callback run under the same lock, so a command
// and a timer action can never interleave. The action must not call back into
// the Watchdog.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-legobot/internal/log"
)

// Mode selects what happens after the action fires.
type Mode int

const (
	// OneShot disarms after firing.
	OneShot Mode = iota
	// Repeat stays armed and starts counting again.
	Repeat
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == Repeat {
		return "repeat"
	}
	return "oneshot"
}

// State is the watchdog's observable state.
type State struct {
	Armed bool `json:"armed"`
	Ticks int  `json:"ticks"`
}

// Arm marks the state armed and restarts the tick count.
func (s *State) Arm() {
	s.Armed = true
	s.Ticks = 0
}

// Disarm marks the state disarmed.
func (s *State) Disarm() {
	s.Armed = false
	s.Ticks = 0
}

// Config configures a Watchdog.
type Config struct {
	// Name identifies the watchdog in logs.
	Name string

	// Period is the tick quantum.
	Period time.Duration

	// Threshold is the number of ticks tolerated; the action fires on the
	// tick that takes the count above it.
	Threshold int

	Mode   Mode
	Logger *slog.Logger
}

// Watchdog is a periodic safety timer. See the package documentation.
type Watchdog struct {
	cfg    Config
	action func()

	mu    sync.Mutex
	state State

	// Diagnostics
	tickCount uint64
	fired     uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a disarmed watchdog. action runs with the watchdog lock held.
func New(cfg Config, action func()) *Watchdog {
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	if cfg.Name == "" {
		cfg.Name = "watchdog"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component(cfg.Name)
	}
	return &Watchdog{
		cfg:    cfg,
		action: action,
		stop:   make(chan struct{}),
	}
}

// Update runs fn with the state locked. fn may arm or disarm the state; if it
// returns an error the state is restored to what it was before the call.
func (w *Watchdog) Update(fn func(s *State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.state
	if err := fn(&w.state); err != nil {
		w.state = prev
		return err
	}
	return nil
}

// Arm arms the watchdog and restarts the count.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	w.state.Arm()
	w.mu.Unlock()
}

// Disarm disarms the watchdog.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	w.state.Disarm()
	w.mu.Unlock()
}

// State returns a copy of the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Timeout is the shortest silence after which the action fires.
func (w *Watchdog) Timeout() time.Duration {
	return w.cfg.Period * time.Duration(w.cfg.Threshold)
}

// Period returns the tick quantum.
func (w *Watchdog) Period() time.Duration {
	return w.cfg.Period
}

// Fired returns how many times the action has run.
func (w *Watchdog) Fired() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

// Tick advances the watchdog by one period and reports whether the action
// fired. Run calls it on every period; tests call it to simulate time.
func (w *Watchdog) Tick() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tickCount++
	if !w.state.Armed {
		return false
	}

	w.state.Ticks++
	if w.state.Ticks <= w.cfg.Threshold {
		return false
	}

	if w.action != nil {
		w.action()
	}
	w.fired++

	switch w.cfg.Mode {
	case Repeat:
		w.state.Ticks = 0
	default:
		w.state.Disarm()
		w.cfg.Logger.Info("watchdog expired", "after", w.Timeout())
	}
	return true
}

// Run ticks every period until ctx is cancelled or Stop is called.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Period)
	defer ticker.Stop()

	w.cfg.Logger.Debug("watchdog started",
		"period", w.cfg.Period, "threshold", w.cfg.Threshold, "mode", w.cfg.Mode)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Stop halts Run. It is safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}
