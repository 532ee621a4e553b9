// Package web serves the robot over HTTP: the RPC bridge, the JSON/REST
// routes, the event stream and the OAuth metadata pass-through.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-legobot/internal/httpc"
	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/hub"
)

// DefaultPort is the robot API port.
const DefaultPort = "8000"

// Robot is what the server exposes. *robot.Service implements it.
type Robot interface {
	bridge.Robot
	WatchdogTimeout() time.Duration
}

// Config configures a Server.
type Config struct {
	// Port to listen on. Defaults to DefaultPort.
	Port string

	// OAuthAuthorizationServerURL is the upstream whose metadata is served
	// at /.well-known/oauth-authorization-server. Empty disables the route.
	OAuthAuthorizationServerURL string

	// HTTPClient fetches the OAuth metadata. Defaults to httpc.Client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Server is the robot API server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	robot      Robot
	dispatcher *bridge.Dispatcher

	// Hub for websocket broadcast (thread-safe!)
	events *hub.Hub
}

// NewServer creates the API server for r. events carries the robot's state
// changes to /ws/events subscribers; the server runs it.
func NewServer(r Robot, events *hub.Hub, cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpc.Client
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("web")
	}
	if events == nil {
		events = hub.New("events", cfg.Logger)
	}

	s := &Server{
		cfg:        cfg,
		logger:     cfg.Logger,
		robot:      r,
		dispatcher: bridge.NewDispatcher(r, cfg.Logger),
		events:     events,
	}
	s.events.OnMessage(s.handleEventClientMessage)

	app := fiber.New(fiber.Config{
		AppName:               "LEGO Robot API",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	// CORS for browser front-ends
	app.Use(cors.New())

	app.Get(bridge.StatusPath, s.handleStatus)
	app.Get(oauthMetadataPath, s.handleOAuthMetadata)

	// Request/response bridge
	app.Post(bridge.RPCPath, s.handleRPC)

	// JSON routes
	s.registerREST(app)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get(bridge.WSPath, rpcSocket(s.dispatcher, s.logger))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Dispatcher returns the request dispatcher shared by all routes.
func (s *Server) Dispatcher() *bridge.Dispatcher {
	return s.dispatcher
}

// Start runs the event hub and serves on the configured port until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.events.IsRunning() {
		go s.events.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("robot API listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleStatus reports what the robot has and can do
func (s *Server) handleStatus(c *fiber.Ctx) error {
	devices, err := s.robot.Devices()
	if err != nil {
		return s.fault(c, err)
	}
	return c.JSON(fiber.Map{
		"devices":           devices,
		"methods":           s.dispatcher.Methods(),
		"watchdog_timeout":  s.robot.WatchdogTimeout().Milliseconds(),
		"event_subscribers": s.events.ClientCount(),
	})
}

// handleRPC serves one bridge request
func (s *Server) handleRPC(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(s.dispatcher.DispatchBytes(c.UserContext(), c.Body()))
}
