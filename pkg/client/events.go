package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-legobot/internal/httpc"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/protocol"
)

// EventsPath is the robot's event stream endpoint.
const EventsPath = "/ws/events"

// Events subscribes to the robot's state changes. The channel closes when
// ctx is done or the connection drops. The first message is a devices
// snapshot.
func (c *Client) Events(ctx context.Context) (<-chan *protocol.Message, error) {
	wsURL, err := bridge.WebSocketURL(c.baseURL, EventsPath)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if ts := c.opts.tokenSource; ts != nil {
		tok, err := ts.Token()
		if err != nil {
			return nil, fmt.Errorf("client: failed to get token: %w", err)
		}
		tok.SetAuthHeader(&http.Request{Header: header})
	}

	dialer := websocket.Dialer{HandshakeTimeout: httpc.DefaultConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("client: event stream: %w", err)
	}

	out := make(chan *protocol.Message, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("event stream closed", "error", err)
				}
				return
			}
			msg, err := protocol.ParseMessage(data)
			if err != nil {
				c.logger.Debug("dropping malformed event", "error", err)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
