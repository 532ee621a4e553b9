package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslashibe/go-legobot/internal/httpc"
	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/protocol"
)

// maxResponseBytes bounds a single RPC reply.
const maxResponseBytes = 1 << 20

// HTTPCaller sends each call as one POST to the robot's /rpc endpoint.
type HTTPCaller struct {
	BaseURL string

	client      *http.Client
	tokenSource oauth2.TokenSource
	logger      *slog.Logger
}

// HTTPOption configures an HTTPCaller.
type HTTPOption func(*HTTPCaller)

// WithHTTPClient replaces the shared client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPCaller) { h.client = c }
}

// WithTimeout bounds every call. Defaults to httpc.DefaultTimeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPCaller) { h.client = httpc.NewClient(d) }
}

// WithTokenSource attaches a bearer token from ts to every request.
func WithTokenSource(ts oauth2.TokenSource) HTTPOption {
	return func(h *HTTPCaller) { h.tokenSource = ts }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPCaller) { h.logger = l }
}

// NewHTTPCaller creates a caller for the robot API at baseURL
// (for example "http://192.168.1.50:8000").
func NewHTTPCaller(baseURL string, opts ...HTTPOption) *HTTPCaller {
	h := &HTTPCaller{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.Client,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.Component("bridge")
	}
	if h.tokenSource != nil {
		base := h.client.Transport
		if base == nil {
			base = httpc.NewTransport()
		}
		authed := *h.client
		authed.Transport = &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, h.tokenSource),
			Base:   base,
		}
		h.client = &authed
	}
	return h
}

// Call implements Caller.
func (h *HTTPCaller) Call(ctx context.Context, method string, params, result any) error {
	req, err := protocol.NewRequest(method, params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+RPCPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return transportErr(method, "send", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportErr(method, "receive", err)
	}

	rpcResp, err := protocol.ParseResponse(data)
	if err != nil {
		return transportErr(method, "decode", fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if rpcResp.ID != req.ID && !(rpcResp.ID == "" && rpcResp.Error != nil) {
		return transportErr(method, "decode", fmt.Errorf("response id %q does not match request %q", rpcResp.ID, req.ID))
	}

	h.logger.Debug("rpc call", "method", method, "status", resp.StatusCode, "took", time.Since(start))
	return decodeResponse(method, rpcResp, result)
}

// Close releases idle connections.
func (h *HTTPCaller) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
