package client

import (
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// Defaults
const (
	// DefaultResendPeriod is how often a held motor command is repeated.
	DefaultResendPeriod = 2 * time.Second

	// DefaultServerTimeout is the server's motor watchdog timeout.
	DefaultServerTimeout = robot.DefaultWatchdogPeriod * robot.DefaultWatchdogThreshold

	// DefaultPort is the robot API port.
	DefaultPort = "8000"
)

// Transport selects how calls reach the robot.
type Transport string

const (
	// TransportHTTP posts each call to /rpc.
	TransportHTTP Transport = "http"
	// TransportWebSocket keeps one /ws/rpc connection open.
	TransportWebSocket Transport = "ws"
)

type options struct {
	caller        bridge.Caller
	transport     Transport
	tokenSource   oauth2.TokenSource
	timeout       time.Duration
	resendPeriod  time.Duration
	serverTimeout time.Duration
	timeoutSet    bool
	reinitialize  bool
	logger        *slog.Logger
}

// Option configures Connect.
type Option func(*options)

// WithCaller uses c instead of dialing addr. Connect's addr is then only
// used in log messages.
func WithCaller(c bridge.Caller) Option {
	return func(o *options) { o.caller = c }
}

// WithTransport selects HTTP (default) or WebSocket calls.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTokenSource attaches OAuth2 bearer tokens to every call.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) { o.tokenSource = ts }
}

// WithTimeout bounds every call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithResendPeriod sets how often a held motor command is repeated.
func WithResendPeriod(d time.Duration) Option {
	return func(o *options) { o.resendPeriod = d }
}

// WithServerTimeout declares the server's motor watchdog timeout. The resend
// period must be shorter. A robot reached over the network advertises its
// own timeout, which replaces the declared one.
func WithServerTimeout(d time.Duration) Option {
	return func(o *options) {
		o.serverTimeout = d
		o.timeoutSet = true
	}
}

// WithReinitialize re-acquires the robot's hardware before the handshake.
func WithReinitialize() Option {
	return func(o *options) { o.reinitialize = true }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}
