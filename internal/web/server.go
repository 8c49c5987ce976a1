// Package web provides an HTTP status server for the canary daemon.
package web

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/status"
)

// Server serves the status page, the JSON status and the live websocket feed.
type Server struct {
	app     *fiber.App
	addr    string
	tracker *status.Tracker
	hub     *Hub
	logger  *zap.Logger
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, logger *zap.Logger) *Server {
	s := &Server{
		addr:    addr,
		tracker: tracker,
		hub:     NewHub(logger),
		logger:  logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "canary",
		DisableStartupMessage: true,
	})
	app.Get("/", s.handleIndex)
	app.Get("/index.html", s.handleIndex)
	app.Get("/index.json", s.handleJSON)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// Run starts the websocket hub and serves on the configured address until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Useful for tests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}()
	return s.app.Listener(ln)
}

// Push sends the current status to every websocket client.
func (s *Server) Push() {
	s.hub.Broadcast(status.FormatJSON(s.tracker.Snapshot()))
}

// Clients returns the number of live websocket clients.
func (s *Server) Clients() int {
	return s.hub.Clients()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return renderHTML(c, s.tracker.Snapshot())
}

func (s *Server) handleJSON(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleWS(conn *websocket.Conn) {
	s.hub.serve(conn, status.FormatJSON(s.tracker.Snapshot()))
}
