package device

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-legobot/internal/log"
)

// Handles is one initialization's worth of acquired modules. Absent modules
// are unset and reported as such by their accessor. Handles is read-only.
type Handles struct {
	caps CapabilitySet

	lights    IndicatorLights
	tank      TankDrive
	head      HeadMotor
	speech    Speech
	touch     TouchSensor
	color     ColorSensor
	proximity ProximitySensor
}

// Capabilities returns the kinds present in this snapshot.
func (h *Handles) Capabilities() CapabilitySet { return h.caps }

// Lights returns the indicator lights and whether they are present.
func (h *Handles) Lights() (IndicatorLights, bool) { return h.lights, h.lights != nil }

// TankDrive returns the drive motors and whether they are present.
func (h *Handles) TankDrive() (TankDrive, bool) { return h.tank, h.tank != nil }

// Head returns the head motor and whether it is present.
func (h *Handles) Head() (HeadMotor, bool) { return h.head, h.head != nil }

// Speech returns the speaker and whether it is present.
func (h *Handles) Speech() (Speech, bool) { return h.speech, h.speech != nil }

// TouchSensor returns the button and whether it is present.
func (h *Handles) TouchSensor() (TouchSensor, bool) { return h.touch, h.touch != nil }

// ColorSensor returns the color sensor and whether it is present.
func (h *Handles) ColorSensor() (ColorSensor, bool) { return h.color, h.color != nil }

// ProximitySensor returns the distance sensor and whether it is present.
func (h *Handles) ProximitySensor() (ProximitySensor, bool) {
	return h.proximity, h.proximity != nil
}

func (h *Handles) all() []any {
	return []any{h.lights, h.tank, h.head, h.speech, h.touch, h.color, h.proximity}
}

// Registry owns the acquired hardware handles.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	handles *Handles
}

// NewRegistry creates a registry over backend. Nothing is acquired until
// Initialize is called; until then every module reads as absent.
func NewRegistry(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = log.Component("registry")
	}
	return &Registry{
		backend: backend,
		logger:  logger,
		handles: &Handles{},
	}
}

// acquisition pairs a kind with the step that stores its handle.
type acquisition struct {
	kind    Kind
	acquire func() error
}

// store assigns the handle returned by get to dst only on success, so an
// absent module always leaves its slot unset.
func store[T any](dst *T, get func() (T, error)) func() error {
	return func() error {
		d, err := get()
		if err != nil {
			return err
		}
		if any(d) == nil {
			return NotFound("backend returned no handle")
		}
		*dst = d
		return nil
	}
}

func (r *Registry) acquisitions(h *Handles) []acquisition {
	b := r.backend
	return []acquisition{
		{Lights, store(&h.lights, b.Lights)},
		{Motors, store(&h.tank, b.TankDrive)},
		{Head, store(&h.head, b.Head)},
		{Speaker, store(&h.speech, b.Speech)},
		{Button, store(&h.touch, b.TouchSensor)},
		{Color, store(&h.color, b.ColorSensor)},
		{Distance, store(&h.proximity, b.ProximitySensor)},
	}
}

// Initialize acquires every module in AllKinds order, puts the actuators in
// their idle state (motors stopped, lights off) and publishes the result.
//
// A module reporting ErrNotFound is skipped. Any other error aborts with a
// *StartupError and leaves the previous handles in place.
func (r *Registry) Initialize() error {
	next := &Handles{}
	var present []Kind

	for _, a := range r.acquisitions(next) {
		err := a.acquire()
		switch {
		case err == nil:
			present = append(present, a.kind)
		case errors.Is(err, ErrNotFound):
			r.logger.Debug("device absent", "kind", a.kind, "reason", err)
		default:
			closeHandles(next)
			return &StartupError{Kind: a.kind, Err: err}
		}
	}
	next.caps = NewCapabilitySet(present...)

	if err := idle(next); err != nil {
		closeHandles(next)
		return err
	}

	r.mu.Lock()
	prev := r.handles
	r.handles = next
	r.mu.Unlock()

	closeHandles(prev)

	r.logger.Info("devices initialized", "devices", next.caps.String())
	return nil
}

// idle stops the motors and turns the lights off so a re-init never inherits
// motion or colors from a previous session.
func idle(h *Handles) error {
	if tank, ok := h.TankDrive(); ok {
		if err := tank.Stop(); err != nil {
			return &StartupError{Kind: Motors, Err: err}
		}
	}
	if lights, ok := h.Lights(); ok {
		for _, side := range []Side{Left, Right} {
			if err := lights.SetColor(side, Black); err != nil {
				return &StartupError{Kind: Lights, Err: err}
			}
		}
	}
	return nil
}

func closeHandles(h *Handles) {
	if h == nil {
		return
	}
	for _, d := range h.all() {
		if c, ok := d.(io.Closer); ok && c != nil {
			_ = c.Close()
		}
	}
}

// Capabilities returns the set from the most recent successful Initialize.
func (r *Registry) Capabilities() CapabilitySet {
	return r.Handles().Capabilities()
}

// Handles returns the current snapshot. It never returns nil.
func (r *Registry) Handles() *Handles {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles
}

// Close releases every handle that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	prev := r.handles
	r.handles = &Handles{}
	r.mu.Unlock()
	closeHandles(prev)
	return nil
}
