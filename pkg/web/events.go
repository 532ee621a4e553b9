package web

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/hub"
	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// EventPublisher returns a robot event handler that broadcasts on h.
// timeout is reported with watchdog events. It never blocks.
func EventPublisher(h *hub.Hub, timeout time.Duration) func(robot.Event) {
	logger := log.Component("events")
	return func(e robot.Event) {
		msg, err := EventMessage(e, timeout)
		if err != nil {
			logger.Warn("event not encodable", "type", e.Type, "error", err)
			return
		}
		if msg == nil {
			return
		}
		if err := h.BroadcastMessage(msg); err != nil {
			logger.Warn("event broadcast failed", "type", e.Type, "error", err)
		}
	}
}

// EventMessage converts a robot event to its wire message. Unknown event
// types yield nil.
func EventMessage(e robot.Event, timeout time.Duration) (*protocol.Message, error) {
	switch e.Type {
	case robot.EventDevices:
		return protocol.NewDevicesMessage(e.Devices, e.Reason)
	case robot.EventMotors:
		return protocol.NewMotorsMessage(bridge.MotorsData(e.Motors))
	case robot.EventWatchdog:
		return protocol.NewWatchdogMessage(e.Reason, timeout)
	default:
		return nil, nil
	}
}

// handleEventsWS subscribes a websocket to robot events. The first message is
// a snapshot of the attached devices.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.events, conn)
	if client == nil {
		conn.Close()
		return
	}

	devices, err := s.robot.Devices()
	if err == nil {
		if msg, err := protocol.NewDevicesMessage(devices, "snapshot"); err == nil {
			if data, err := msg.Bytes(); err == nil {
				client.Send(data)
			}
		}
	}

	client.Run() // blocks until the socket closes
}

// handleEventClientMessage answers pings from event subscribers
func (s *Server) handleEventClientMessage(c *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("bad event client message", "client", c.ID, "error", err)
		return
	}
	ping, err := protocol.Decode[protocol.PingData](msg)
	if err != nil {
		// Only pings are answered
		return
	}
	pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	if out, err := pong.Bytes(); err == nil {
		c.Send(out)
	}
}
