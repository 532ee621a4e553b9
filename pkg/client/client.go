// Package client is the remote side of the robot protocol.
//
// Connect asks the robot which modules it has and from then on only lets
// through the operations those modules support; anything else fails locally
// without a network call. Motor commands are held: while the last command is
// not (0,0) the client repeats it every resend period so the robot's own
// watchdog does not stop the motors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
	"github.com/teslashibe/go-legobot/pkg/watchdog"
)

// ErrUnreachable is returned by Connect when the robot cannot be contacted.
var ErrUnreachable = errors.New("client: robot unreachable")

type motorCommand struct {
	Left, Right int
}

func (m motorCommand) moving() bool {
	return m.Left != 0 || m.Right != 0
}

// Client is a connection to one robot.
type Client struct {
	baseURL string
	caller  bridge.Caller
	opts    options
	logger  *slog.Logger

	// Fixed at connect
	devices   []string
	caps      device.CapabilitySet
	methods   []string
	available map[string]bool

	sustainer *watchdog.Watchdog

	// Guarded by the sustainer lock
	intent motorCommand

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ robot.Controller = (*Client)(nil)

// Connect contacts the robot at addr and learns its modules. addr is a host,
// host:port or URL; the port defaults to DefaultPort. An unreachable robot
// fails immediately with ErrUnreachable.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{
		transport:     TransportHTTP,
		resendPeriod:  DefaultResendPeriod,
		serverTimeout: DefaultServerTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Component("client")
	}
	if err := o.checkResendPeriod(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: BaseURL(addr),
		caller:  o.caller,
		opts:    o,
		logger:  o.logger,
		done:    make(chan struct{}),
	}
	networked := c.caller == nil
	if networked {
		caller, err := newCaller(c.baseURL, o)
		if err != nil {
			return nil, err
		}
		c.caller = caller
	}

	if err := c.handshake(ctx); err != nil {
		c.caller.Close()
		return nil, err
	}

	if networked {
		c.adoptAdvertisedTimeout(ctx)
		if err := c.opts.checkResendPeriod(); err != nil {
			c.caller.Close()
			return nil, err
		}
	}

	c.sustainer = watchdog.New(watchdog.Config{
		Name:   "motor-resend",
		Period: c.opts.resendPeriod,
		Mode:   watchdog.Repeat,
		Logger: c.logger,
	}, c.resend)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		defer close(c.done)
		c.sustainer.Run(runCtx)
	}()

	c.logger.Info("connected to robot", "addr", c.baseURL, "devices", strings.Join(c.devices, ", "))
	return c, nil
}

func (o options) checkResendPeriod() error {
	if o.resendPeriod <= 0 || o.resendPeriod >= o.serverTimeout {
		return fmt.Errorf("client: resend period %s must be positive and shorter than the robot's %s watchdog timeout",
			o.resendPeriod, o.serverTimeout)
	}
	return nil
}

func newCaller(baseURL string, o options) (bridge.Caller, error) {
	switch o.transport {
	case TransportWebSocket:
		wsOpts := []bridge.WSOption{bridge.WithWSLogger(o.logger)}
		if o.timeout > 0 {
			wsOpts = append(wsOpts, bridge.WithWSTimeout(o.timeout))
		}
		if o.tokenSource != nil {
			wsOpts = append(wsOpts, bridge.WithWSTokenSource(o.tokenSource))
		}
		return bridge.NewWSCaller(baseURL, wsOpts...)
	case TransportHTTP, "":
		httpOpts := []bridge.HTTPOption{bridge.WithHTTPLogger(o.logger)}
		if o.timeout > 0 {
			httpOpts = append(httpOpts, bridge.WithTimeout(o.timeout))
		}
		if o.tokenSource != nil {
			httpOpts = append(httpOpts, bridge.WithTokenSource(o.tokenSource))
		}
		return bridge.NewHTTPCaller(baseURL, httpOpts...), nil
	default:
		return nil, fmt.Errorf("client: unknown transport %q", o.transport)
	}
}

// BaseURL normalizes a robot address to a base URL.
func BaseURL(addr string) string {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return strings.TrimRight(addr, "/")
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), DefaultPort)
	}
	return strings.TrimRight(u.String(), "/")
}

// handshake optionally re-initializes the robot, then fetches its devices
func (c *Client) handshake(ctx context.Context) error {
	if c.opts.reinitialize {
		if err := c.caller.Call(ctx, robot.MethodInit, nil, nil); err != nil {
			return c.connectErr(err)
		}
	}

	var devices []string
	if err := c.caller.Call(ctx, robot.MethodDevices, nil, &devices); err != nil {
		return c.connectErr(err)
	}

	kinds := make([]device.Kind, 0, len(devices))
	for _, token := range devices {
		kind, err := device.ParseKind(token)
		if err != nil {
			c.logger.Warn("ignoring unknown device", "device", token)
			continue
		}
		kinds = append(kinds, kind)
	}

	c.caps = device.NewCapabilitySet(kinds...)
	c.devices = c.caps.Strings()
	c.methods = robot.AvailableMethods(c.caps)
	c.available = make(map[string]bool, len(c.methods))
	for _, m := range c.methods {
		c.available[m] = true
	}
	return nil
}

func (c *Client) connectErr(err error) error {
	if bridge.IsTransport(err) {
		return fmt.Errorf("%w at %s, is the server running and the address correct? %w", ErrUnreachable, c.baseURL, err)
	}
	return fmt.Errorf("client: handshake failed: %w", err)
}

// Close stops repeating motor commands and releases the connection. It does
// not stop the motors; the robot's watchdog does that once commands cease.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.sustainer.Stop()
		<-c.done
		err = c.caller.Close()
	})
	return err
}

// Addr returns the robot's base URL.
func (c *Client) Addr() string {
	return c.baseURL
}

// Capabilities returns the modules the robot reported at connect.
func (c *Client) Capabilities() device.CapabilitySet {
	return c.caps
}

// Devices returns the device list fetched at connect.
func (c *Client) Devices() ([]string, error) {
	return slices.Clone(c.devices), nil
}

// Methods returns the sorted names of the operations this robot supports.
func (c *Client) Methods() []string {
	return slices.Clone(c.methods)
}

// Supports reports whether method may be called on this robot.
func (c *Client) Supports(method string) bool {
	return c.available[method]
}

func (c *Client) unsupported(method string) error {
	desc, ok := robot.LookupMethod(method)
	if !ok {
		return robot.Faultf(robot.FaultUnsupported, "%s is not a robot operation", method)
	}
	missing := c.caps.Missing(desc.Requires...)
	names := make([]string, len(missing))
	for i, k := range missing {
		names[i] = string(k)
	}
	return robot.Faultf(robot.FaultUnsupported, "%s is unsupported on this robot (missing %s)",
		method, strings.Join(names, ", "))
}

// call forwards a supported operation
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if !c.Supports(method) {
		return c.unsupported(method)
	}
	return c.caller.Call(ctx, method, params, result)
}

// Call invokes any supported operation by name. set_motors goes through
// SetMotors so the command is held.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	if method != robot.MethodSetMotors {
		return c.call(ctx, method, params, result)
	}
	if !c.Supports(method) {
		return c.unsupported(method)
	}

	var p protocol.SetMotorsParams
	raw, err := json.Marshal(params)
	if err != nil {
		return robot.Faultf(robot.FaultInvalidArgument, "%s: %v", method, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return robot.Faultf(robot.FaultInvalidArgument, "%s: %v", method, err)
	}
	if err := c.setMotors(ctx, p.LeftSpeed, p.RightSpeed); err != nil {
		return err
	}
	if result != nil {
		return assign(result, protocol.StatusSuccess)
	}
	return nil
}

func assign(dst, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetLights sets both indicator lights.
func (c *Client) SetLights(left, right device.LEDColor) error {
	return c.call(context.Background(), robot.MethodSetLights,
		protocol.SetLightsParams{LeftColor: string(left), RightColor: string(right)}, nil)
}

// SetMotors drives the motors and holds the command until the next one.
// Out of range speeds are rejected locally. If the robot refuses the
// command the previous one stays held; if the robot cannot be reached the
// new command is held anyway and resent on the next period.
func (c *Client) SetMotors(left, right int) error {
	return c.setMotors(context.Background(), left, right)
}

func checkSpeed(name string, v int) error {
	if v < -robot.MaxSpeed || v > robot.MaxSpeed {
		return robot.Faultf(robot.FaultInvalidArgument, "%s must be between %d and %d, got %d",
			name, -robot.MaxSpeed, robot.MaxSpeed, v)
	}
	return nil
}

func (c *Client) setMotors(ctx context.Context, left, right int) error {
	if !c.Supports(robot.MethodSetMotors) {
		return c.unsupported(robot.MethodSetMotors)
	}
	if err := checkSpeed("left_speed", left); err != nil {
		return err
	}
	if err := checkSpeed("right_speed", right); err != nil {
		return err
	}

	var unreachable error
	err := c.sustainer.Update(func(st *watchdog.State) error {
		prev := c.intent
		c.intent = motorCommand{Left: left, Right: right}
		if c.intent.moving() {
			st.Arm()
		} else {
			st.Disarm()
		}

		err := c.sendMotors(ctx, c.intent)
		switch {
		case err == nil:
			return nil
		case bridge.IsTransport(err):
			unreachable = err
			return nil
		default:
			c.intent = prev
			return err
		}
	})
	if err != nil {
		return err
	}
	return unreachable
}

func (c *Client) sendMotors(ctx context.Context, cmd motorCommand) error {
	return c.caller.Call(ctx, robot.MethodSetMotors,
		protocol.SetMotorsParams{LeftSpeed: cmd.Left, RightSpeed: cmd.Right}, nil)
}

// resend is the sustainer action. It runs with the sustainer lock held.
func (c *Client) resend() {
	cmd := c.intent
	if !cmd.moving() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.resendPeriod)
	defer cancel()
	if err := c.sendMotors(ctx, cmd); err != nil {
		c.logger.Warn("motor resend failed", "left", cmd.Left, "right", cmd.Right, "error", err)
		return
	}
	c.logger.Debug("motor command resent", "left", cmd.Left, "right", cmd.Right)
}

// Intent returns the motor command being held and whether it is being resent.
func (c *Client) Intent() robot.MotorStatus {
	var status robot.MotorStatus
	_ = c.sustainer.Update(func(st *watchdog.State) error {
		status = robot.MotorStatus{Left: c.intent.Left, Right: c.intent.Right, Armed: st.Armed, Ticks: st.Ticks}
		return nil
	})
	return status
}

// GetMotors reads the motor command the robot is applying.
func (c *Client) GetMotors() (robot.MotorStatus, error) {
	var data protocol.MotorsData
	if err := c.call(context.Background(), robot.MethodGetMotors, nil, &data); err != nil {
		return robot.MotorStatus{}, err
	}
	return robot.MotorStatus{Left: data.Left, Right: data.Right, Armed: data.Armed, Ticks: data.Ticks}, nil
}

// SetHead turns the head.
func (c *Client) SetHead(position int) error {
	return c.call(context.Background(), robot.MethodSetHead, protocol.SetHeadParams{Position: position}, nil)
}

// Speak says text on the robot.
func (c *Client) Speak(text string) error {
	return c.call(context.Background(), robot.MethodSpeak, protocol.SpeakParams{Text: text}, nil)
}

// GetButton reads the touch sensor.
func (c *Client) GetButton() (bool, error) {
	var pressed bool
	err := c.call(context.Background(), robot.MethodGetButton, nil, &pressed)
	return pressed, err
}

// WaitButtonPressed waits a bounded time on the robot for a press.
func (c *Client) WaitButtonPressed() (bool, error) {
	return c.waitButton(context.Background(), robot.MethodWaitButtonPressed)
}

// WaitButtonReleased waits a bounded time on the robot for a release.
func (c *Client) WaitButtonReleased() (bool, error) {
	return c.waitButton(context.Background(), robot.MethodWaitButtonReleased)
}

func (c *Client) waitButton(ctx context.Context, method string) (bool, error) {
	var ok bool
	err := c.call(ctx, method, nil, &ok)
	return ok, err
}

// AwaitButtonPressed blocks until the button is pressed or ctx is done.
func (c *Client) AwaitButtonPressed(ctx context.Context) error {
	return c.awaitButton(ctx, robot.MethodWaitButtonPressed)
}

// AwaitButtonReleased blocks until the button is released or ctx is done.
func (c *Client) AwaitButtonReleased(ctx context.Context) error {
	return c.awaitButton(ctx, robot.MethodWaitButtonReleased)
}

func (c *Client) awaitButton(ctx context.Context, method string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := c.waitButton(ctx, method)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			return ctxErr
		}
		if err != nil || ok {
			return err
		}
	}
}

// GetColor reads the color sensor.
func (c *Client) GetColor() (string, error) {
	var color string
	err := c.call(context.Background(), robot.MethodGetColor, nil, &color)
	return color, err
}

// GetDistance reads the distance sensor in centimetres.
func (c *Client) GetDistance() (int, error) {
	var cm int
	err := c.call(context.Background(), robot.MethodGetDistance, nil, &cm)
	return cm, err
}

// tick advances the resend timer by one period
func (c *Client) tick() bool {
	return c.sustainer.Tick()
}

// ResendPeriod returns how often a held motor command is repeated.
func (c *Client) ResendPeriod() time.Duration {
	return c.opts.resendPeriod
}

// ServerTimeout returns the robot's motor watchdog timeout: the advertised
// one when the robot reported it, otherwise the declared one.
func (c *Client) ServerTimeout() time.Duration {
	return c.opts.serverTimeout
}
