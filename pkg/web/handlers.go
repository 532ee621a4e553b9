package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-legobot/pkg/protocol"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// route is one JSON endpoint backed by a robot operation
type route struct {
	verb   string
	path   string
	method string
	// wrap shapes the result; nil returns it as is
	wrap func(v any) any
}

func named(key string) func(any) any {
	return func(v any) any { return fiber.Map{key: v} }
}

var routes = []route{
	{fiber.MethodGet, "/list_devices", robot.MethodDevices, nil},
	{fiber.MethodPost, "/init", robot.MethodInit, named("devices")},
	{fiber.MethodPost, "/set_lights", robot.MethodSetLights, nil},
	{fiber.MethodPost, "/set_motors", robot.MethodSetMotors, nil},
	{fiber.MethodGet, "/get_motors", robot.MethodGetMotors, nil},
	{fiber.MethodPost, "/set_head", robot.MethodSetHead, nil},
	{fiber.MethodPost, "/speak", robot.MethodSpeak, nil},
	{fiber.MethodGet, "/get_button", robot.MethodGetButton, named("pressed")},
	{fiber.MethodPost, "/wait_button_pressed", robot.MethodWaitButtonPressed, named("pressed")},
	{fiber.MethodPost, "/wait_button_released", robot.MethodWaitButtonReleased, named("released")},
	{fiber.MethodGet, "/get_color", robot.MethodGetColor, named("color")},
	{fiber.MethodGet, "/get_distance", robot.MethodGetDistance, named("distance")},
}

func (s *Server) registerREST(app *fiber.App) {
	for _, r := range routes {
		app.Add(r.verb, r.path, s.handleREST(r))
	}
}

// handleREST runs the route's operation with the JSON body as arguments
func (s *Server) handleREST(r route) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := &protocol.Request{ID: uuid.NewString(), Method: r.method}
		if body := c.Body(); r.verb == fiber.MethodPost && len(body) > 0 {
			// The body buffer is reused after the handler returns
			req.Params = append(json.RawMessage(nil), body...)
		}

		result, err := s.dispatcher.Call(c.UserContext(), req)
		if err != nil {
			return s.fault(c, err)
		}
		if r.wrap != nil {
			result = r.wrap(result)
		}
		return c.JSON(result)
	}
}

// statusFor maps a fault kind to an HTTP status
func statusFor(kind robot.FaultKind) int {
	switch kind {
	case robot.FaultNotConnected:
		return fiber.StatusNotFound
	case robot.FaultInvalidArgument, robot.FaultUnknownMethod, robot.FaultUnsupported:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fault(c *fiber.Ctx, err error) error {
	kind := robot.KindOf(err)
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kind,
	})
}
