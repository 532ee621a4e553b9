package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/teslashibe/go-legobot/internal/httpc"
	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/protocol"
)

// ErrClosed is returned by a WSCaller after Close.
var ErrClosed = errors.New("bridge: caller closed")

// WSCaller keeps one WebSocket to the robot's /ws/rpc endpoint and sends
// calls over it one at a time. The connection is dialed on first use and
// re-dialed after any failure.
type WSCaller struct {
	url         string
	timeout     time.Duration
	dialer      *websocket.Dialer
	tokenSource oauth2.TokenSource
	logger      *slog.Logger

	mu     sync.Mutex // one call in flight
	conn   *websocket.Conn
	closed bool
}

// WSOption configures a WSCaller.
type WSOption func(*WSCaller)

// WithWSTimeout bounds every call that has no earlier context deadline.
func WithWSTimeout(d time.Duration) WSOption {
	return func(w *WSCaller) { w.timeout = d }
}

// WithWSTokenSource sends a bearer token from ts when dialing.
func WithWSTokenSource(ts oauth2.TokenSource) WSOption {
	return func(w *WSCaller) { w.tokenSource = ts }
}

// WithWSLogger sets the logger.
func WithWSLogger(l *slog.Logger) WSOption {
	return func(w *WSCaller) { w.logger = l }
}

// WebSocketURL converts a robot API base URL to the ws(s) URL of path.
func WebSocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid robot URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in robot URL", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// NewWSCaller creates a WebSocket caller for the robot API at baseURL.
func NewWSCaller(baseURL string, opts ...WSOption) (*WSCaller, error) {
	wsURL, err := WebSocketURL(baseURL, WSPath)
	if err != nil {
		return nil, err
	}
	w := &WSCaller{
		url:     wsURL,
		timeout: httpc.DefaultTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: httpc.DefaultConnectTimeout,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.Component("bridge")
	}
	return w, nil
}

func (w *WSCaller) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if w.tokenSource != nil {
		tok, err := w.tokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}
		tok.SetAuthHeader(&http.Request{Header: header})
	}
	conn, _, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("rpc websocket connected", "url", w.url)
	return conn, nil
}

// Call implements Caller.
func (w *WSCaller) Call(ctx context.Context, method string, params, result any) error {
	req, err := protocol.NewRequest(method, params)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return transportErr(method, "send", ErrClosed)
	}

	if _, ok := ctx.Deadline(); !ok && w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	if w.conn == nil {
		conn, err := w.dial(ctx)
		if err != nil {
			return transportErr(method, "dial", err)
		}
		w.conn = conn
	}

	resp, err := w.roundTrip(req, deadline)
	if err != nil {
		// The stream is out of step; start over on the next call
		_ = w.conn.Close()
		w.conn = nil
		return transportErr(method, "receive", err)
	}
	return decodeResponse(method, resp, result)
}

func (w *WSCaller) roundTrip(req *protocol.Request, deadline time.Time) (*protocol.Response, error) {
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := w.conn.WriteJSON(req); err != nil {
		return nil, err
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		resp, err := protocol.ParseResponse(data)
		if err != nil {
			return nil, err
		}
		// A request the server could not parse is answered without an id
		if resp.ID == req.ID || (resp.ID == "" && resp.Error != nil) {
			return resp, nil
		}
		// Reply to an abandoned call
		w.logger.Debug("dropping stale rpc response", "id", resp.ID)
	}
}

// Close closes the connection. Further calls fail.
func (w *WSCaller) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
