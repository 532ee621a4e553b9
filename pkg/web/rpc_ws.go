package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-legobot/pkg/bridge"
)

// rpcSocket serves bridge requests over one websocket, answering each text
// frame in order.
func rpcSocket(d *bridge.Dispatcher, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		logger.Debug("rpc socket opened", "remote", conn.RemoteAddr().String())
		defer conn.Close()

		conn.SetReadLimit(1 << 20)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				logger.Debug("rpc socket closed", "error", err)
				return
			}
			if mt != websocket.TextMessage {
				continue
			}

			reply := d.DispatchBytes(context.Background(), data)
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				logger.Debug("rpc socket write failed", "error", err)
				return
			}
		}
	})
}
