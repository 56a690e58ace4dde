// Package web serves an optional status endpoint for a running gaze stream:
// loop statistics, the effective configuration, and a live gaze feed.
package web

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// maxRecent is the number of samples kept for /api/samples.
const maxRecent = 100

// Options configures the status server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:8090".
	Addr string

	// Session identifies the stream in status responses.
	Session string

	// Camera and Detector name the active backends.
	Camera   string
	Detector string

	// Stats returns the current loop statistics.
	Stats func() pipeline.Stats

	// CaptureStats, if set, reports camera counters in /api/status.
	CaptureStats func() camera.SourceStats

	// PayloadOrder is the float byte order of /ws/wire messages. It should
	// match the stdout stream; nil means protocol.DefaultPayloadOrder.
	PayloadOrder binary.ByteOrder

	// Config is served as-is from /api/config.
	Config any
}

// Server is the status server
type Server struct {
	app     *fiber.App
	opts    Options
	logger  *slog.Logger
	started time.Time

	// Recent samples (last maxRecent)
	recent   []pipeline.Sample
	recentMu sync.RWMutex

	// Hubs for websocket broadcast
	gazeHub *hub.Hub // JSON samples
	wireHub *hub.Hub // 12-byte wire messages
}

// NewServer creates a new status server
func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Stats == nil {
		opts.Stats = func() pipeline.Stats { return pipeline.Stats{} }
	}
	if opts.PayloadOrder == nil {
		opts.PayloadOrder = protocol.DefaultPayloadOrder
	}

	s := &Server{
		opts:    opts,
		logger:  logger,
		started: time.Now(),
		recent:  make([]pipeline.Sample, 0, maxRecent),
		gazeHub: hub.New("gaze", logger),
		wireHub: hub.New("wire", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "gaze-stream",
		DisableStartupMessage: true,
	})

	// CORS for local tooling
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/samples", s.handleSamples)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/gaze", websocket.New(s.handleWS(s.gazeHub)))
	app.Get("/ws/wire", websocket.New(s.handleWS(s.wireHub)))

	s.app = app
	return s
}

// Start listens on opts.Addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.gazeHub.Run(ctx)
	go s.wireHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("status server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Publish records a sample and broadcasts it to websocket clients.
// It never blocks, so it can be used as a loop observer.
func (s *Server) Publish(sample pipeline.Sample) {
	s.recentMu.Lock()
	s.recent = append(s.recent, sample)
	if len(s.recent) > maxRecent {
		s.recent = s.recent[1:]
	}
	s.recentMu.Unlock()

	if s.gazeHub.ClientCount() > 0 {
		if err := s.gazeHub.BroadcastJSON(sample); err != nil {
			s.logger.Debug("encode sample failed", "error", err)
		}
	}
	if s.wireHub.ClientCount() > 0 {
		s.wireHub.BroadcastBinary(protocol.Encode(sample.Point, s.opts.PayloadOrder))
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return s.gazeHub.ClientCount() + s.wireHub.ClientCount()
}
