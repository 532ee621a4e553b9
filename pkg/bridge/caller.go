// Package bridge carries robot operations across the network: client-side
// callers that speak the RPC envelope over HTTP or a WebSocket, and the
// server-side Dispatcher that turns a request into a facade call.
package bridge

import (
	"context"
	"encoding/json"

	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// Caller invokes one remote operation by wire name. params is marshalled as
// the named arguments (nil for none); the result is unmarshalled into result
// unless it is nil.
//
// A refused call returns a *FaultError; a call that may not have arrived
// returns a *TransportError.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
	Close() error
}

// RPCPath is the HTTP endpoint of the request/response bridge.
const RPCPath = "/rpc"

// WSPath is the WebSocket endpoint of the request/response bridge.
const WSPath = "/ws/rpc"

// StatusPath reports the robot's devices and motor watchdog timeout.
const StatusPath = "/api/status"

// decodeResponse turns a wire response into the caller's result or error.
func decodeResponse(method string, resp *protocol.Response, result any) error {
	if resp.Error != nil {
		return &FaultError{
			Method:  method,
			Kind:    robot.FaultKind(resp.Error.Kind),
			Message: resp.Error.Message,
		}
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return transportErr(method, "decode", err)
	}
	return nil
}
