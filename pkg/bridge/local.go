package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/teslashibe/go-legobot/pkg/protocol"
)

// LocalCaller runs calls against an in-process Dispatcher, through the same
// JSON encoding the network callers use. It records every call it is asked
// to make and can simulate an unreachable robot.
type LocalCaller struct {
	d *Dispatcher

	mu    sync.Mutex
	calls []string
	fail  error
}

// NewLocalCaller creates a caller bound to d.
func NewLocalCaller(d *Dispatcher) *LocalCaller {
	return &LocalCaller{d: d}
}

// Call implements Caller.
func (l *LocalCaller) Call(ctx context.Context, method string, params, result any) error {
	l.mu.Lock()
	l.calls = append(l.calls, method)
	fail := l.fail
	l.mu.Unlock()

	if fail != nil {
		return transportErr(method, "send", fail)
	}

	req, err := protocol.NewRequest(method, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}
	resp, err := protocol.ParseResponse(l.d.DispatchBytes(ctx, raw))
	if err != nil {
		return transportErr(method, "decode", err)
	}
	return decodeResponse(method, resp, result)
}

// Calls returns the methods called so far, in order.
func (l *LocalCaller) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// FailWith makes every following call a transport failure with err. A nil
// err restores normal operation.
func (l *LocalCaller) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

// Close implements Caller.
func (l *LocalCaller) Close() error {
	return nil
}
