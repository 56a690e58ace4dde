package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// Status is the /api/status response
type Status struct {
	Session  string         `json:"session"`
	Camera   string         `json:"camera"`
	Detector string         `json:"detector"`
	Uptime   string         `json:"uptime"`
	Clients  int            `json:"clients"`
	Loop     pipeline.Stats `json:"loop"`

	Capture *camera.SourceStats `json:"capture,omitempty"`
}

// handleStatus returns loop statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := Status{
		Session:  s.opts.Session,
		Camera:   s.opts.Camera,
		Detector: s.opts.Detector,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Clients:  s.Clients(),
		Loop:     s.opts.Stats(),
	}
	if s.opts.CaptureStats != nil {
		cs := s.opts.CaptureStats()
		status.Capture = &cs
	}
	return c.JSON(status)
}

// handleConfig returns the effective configuration
func (s *Server) handleConfig(c *fiber.Ctx) error {
	if s.opts.Config == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.opts.Config)
}

// handleSamples returns the most recent samples, oldest first
func (s *Server) handleSamples(c *fiber.Ctx) error {
	s.recentMu.RLock()
	out := make([]pipeline.Sample, len(s.recent))
	copy(out, s.recent)
	s.recentMu.RUnlock()
	return c.JSON(out)
}

// handleWS attaches a websocket connection to h until it disconnects
func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Serve()
	}
}
