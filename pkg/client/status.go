package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teslashibe/go-legobot/internal/httpc"
	"github.com/teslashibe/go-legobot/pkg/bridge"
)

// Status is what the robot reports about itself on bridge.StatusPath.
type Status struct {
	Devices          []string `json:"devices"`
	Methods          []string `json:"methods"`
	WatchdogTimeout  int64    `json:"watchdog_timeout"` // milliseconds
	EventSubscribers int      `json:"event_subscribers"`
}

// FetchStatus reads the robot's status endpoint.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+bridge.StatusPath, nil)
	if err != nil {
		return nil, err
	}
	if ts := c.opts.tokenSource; ts != nil {
		tok, err := ts.Token()
		if err != nil {
			return nil, fmt.Errorf("client: failed to get token: %w", err)
		}
		tok.SetAuthHeader(req)
	}

	resp, err := httpc.NewClient(c.opts.timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: status: HTTP %d", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&st); err != nil {
		return nil, fmt.Errorf("client: status: %w", err)
	}
	return &st, nil
}

// adoptAdvertisedTimeout replaces the declared server timeout with the one
// the robot advertises. A robot without a status endpoint keeps the declared
// value.
func (c *Client) adoptAdvertisedTimeout(ctx context.Context) {
	st, err := c.FetchStatus(ctx)
	if err != nil {
		c.logger.Debug("robot does not advertise its watchdog timeout", "error", err)
		return
	}
	if st.WatchdogTimeout <= 0 {
		return
	}
	advertised := time.Duration(st.WatchdogTimeout) * time.Millisecond
	if c.opts.timeoutSet && advertised != c.opts.serverTimeout {
		c.logger.Warn("robot watchdog timeout differs from the configured one",
			"configured", c.opts.serverTimeout, "advertised", advertised)
	}
	c.opts.serverTimeout = advertised
}
