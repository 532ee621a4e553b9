package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// Robot is the server-side surface the Dispatcher needs. *robot.Service
// implements it.
type Robot interface {
	robot.Controller
	Capabilities() device.CapabilitySet
	Reinitialize() ([]string, error)
	AwaitButton(ctx context.Context, want bool) (bool, error)
}

var _ Robot = (*robot.Service)(nil)

// handler runs one operation with its decoded request.
type handler func(ctx context.Context, req *protocol.Request) (any, error)

// Dispatcher routes wire requests to the robot facade.
type Dispatcher struct {
	robot    Robot
	handlers map[string]handler
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher for r. A nil logger uses the default.
func NewDispatcher(r Robot, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Component("dispatch")
	}
	d := &Dispatcher{robot: r, logger: logger}
	d.handlers = map[string]handler{
		robot.MethodDevices:            d.devices,
		robot.MethodInit:               d.init,
		robot.MethodSetLights:          d.setLights,
		robot.MethodSetMotors:          d.setMotors,
		robot.MethodGetMotors:          d.getMotors,
		robot.MethodSetHead:            d.setHead,
		robot.MethodSpeak:              d.speak,
		robot.MethodGetButton:          d.getButton,
		robot.MethodWaitButtonPressed:  d.waitButton(true),
		robot.MethodWaitButtonReleased: d.waitButton(false),
		robot.MethodGetColor:           d.getColor,
		robot.MethodGetDistance:        d.getDistance,
	}
	return d
}

// Methods returns the operations the robot can currently perform.
func (d *Dispatcher) Methods() []string {
	return robot.AvailableMethods(d.robot.Capabilities())
}

// Dispatch runs req and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	result, err := d.Call(ctx, req)
	if err != nil {
		kind := robot.KindOf(err)
		if kind == robot.FaultInternal || kind == robot.FaultHardware {
			d.logger.Error("rpc call failed", "method", req.Method, "error", err)
		} else {
			d.logger.Debug("rpc call refused", "method", req.Method, "kind", kind, "error", err)
		}
		return protocol.NewFault(req.ID, string(kind), err.Error())
	}

	resp, err := protocol.NewResult(req.ID, result)
	if err != nil {
		d.logger.Error("rpc result not encodable", "method", req.Method, "error", err)
		return protocol.NewFault(req.ID, string(robot.FaultInternal), err.Error())
	}
	return resp
}

// DispatchBytes parses a raw request and returns the encoded response. An
// unparseable request gets an invalid_argument fault with no id.
func (d *Dispatcher) DispatchBytes(ctx context.Context, data []byte) []byte {
	var resp *protocol.Response
	req, err := protocol.ParseRequest(data)
	if err != nil {
		resp = protocol.NewFault("", string(robot.FaultInvalidArgument), err.Error())
	} else {
		resp = d.Dispatch(ctx, req)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		// Only strings inside; cannot happen
		return []byte(`{"error":{"kind":"internal","message":"response encoding failed"}}`)
	}
	return out
}

// Call runs req and returns its result value. Errors carry a robot fault kind.
func (d *Dispatcher) Call(ctx context.Context, req *protocol.Request) (any, error) {
	desc, ok := robot.LookupMethod(req.Method)
	h, hasHandler := d.handlers[req.Method]
	if !ok || !hasHandler {
		return nil, robot.Faultf(robot.FaultUnknownMethod, "unknown method %q", req.Method)
	}

	// The client filters on the device list, but the hardware may have
	// changed since it connected
	if missing := d.robot.Capabilities().Missing(desc.Requires...); len(missing) > 0 {
		return nil, robot.NotConnected(missing[0])
	}

	if err := checkParams(desc, req); err != nil {
		return nil, err
	}
	return h(ctx, req)
}

// checkParams requires every declared argument to be present. Extra
// arguments are ignored.
func checkParams(desc robot.MethodDescriptor, req *protocol.Request) error {
	if len(desc.Params) == 0 {
		return nil
	}
	var args map[string]json.RawMessage
	if len(req.Params) > 0 && !bytes.Equal(req.Params, []byte("null")) {
		if err := json.Unmarshal(req.Params, &args); err != nil {
			return robot.Faultf(robot.FaultInvalidArgument, "%s: params must be an object", req.Method)
		}
	}
	for _, p := range desc.Params {
		if _, ok := args[p.Name]; !ok {
			return robot.Faultf(robot.FaultInvalidArgument, "%s: missing %s", req.Method, p.Name)
		}
	}
	return nil
}

func decode(req *protocol.Request, v any) error {
	if err := req.ParseParams(v); err != nil {
		return robot.Faultf(robot.FaultInvalidArgument, "%s: %v", req.Method, err)
	}
	return nil
}

func (d *Dispatcher) devices(context.Context, *protocol.Request) (any, error) {
	return d.robot.Devices()
}

func (d *Dispatcher) init(context.Context, *protocol.Request) (any, error) {
	return d.robot.Reinitialize()
}

func (d *Dispatcher) setLights(_ context.Context, req *protocol.Request) (any, error) {
	var p protocol.SetLightsParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if err := d.robot.SetLights(device.LEDColor(p.LeftColor), device.LEDColor(p.RightColor)); err != nil {
		return nil, err
	}
	return protocol.StatusSuccess, nil
}

func (d *Dispatcher) setMotors(_ context.Context, req *protocol.Request) (any, error) {
	var p protocol.SetMotorsParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if err := d.robot.SetMotors(p.LeftSpeed, p.RightSpeed); err != nil {
		return nil, err
	}
	return protocol.StatusSuccess, nil
}

func (d *Dispatcher) getMotors(context.Context, *protocol.Request) (any, error) {
	st, err := d.robot.GetMotors()
	if err != nil {
		return nil, err
	}
	return MotorsData(st), nil
}

func (d *Dispatcher) setHead(_ context.Context, req *protocol.Request) (any, error) {
	var p protocol.SetHeadParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if err := d.robot.SetHead(p.Position); err != nil {
		return nil, err
	}
	return protocol.StatusSuccess, nil
}

func (d *Dispatcher) speak(_ context.Context, req *protocol.Request) (any, error) {
	var p protocol.SpeakParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	if err := d.robot.Speak(p.Text); err != nil {
		return nil, err
	}
	return protocol.StatusSuccess, nil
}

func (d *Dispatcher) getButton(context.Context, *protocol.Request) (any, error) {
	return d.robot.GetButton()
}

func (d *Dispatcher) waitButton(want bool) handler {
	return func(ctx context.Context, _ *protocol.Request) (any, error) {
		return d.robot.AwaitButton(ctx, want)
	}
}

func (d *Dispatcher) getColor(context.Context, *protocol.Request) (any, error) {
	return d.robot.GetColor()
}

func (d *Dispatcher) getDistance(context.Context, *protocol.Request) (any, error) {
	return d.robot.GetDistance()
}

// MotorsData converts a motor status to its wire form.
func MotorsData(st robot.MotorStatus) protocol.MotorsData {
	return protocol.MotorsData{Left: st.Left, Right: st.Right, Armed: st.Armed, Ticks: st.Ticks}
}

