package pipeline

import (
	"io"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame() camera.Frame {
	return camera.SolidFrame(4, 4, camera.BGR, 10, 20, 30)
}

func face(lx, ly, rx, ry float64) gaze.LandmarkSet {
	return detection.FaceAt(gaze.RefinedMeshLandmarks, gaze.Point{X: lx, Y: ly}, gaze.Point{X: rx, Y: ry})
}

// testConfig is the default loop config without retry sleeps.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadRetryBackoff = 0
	return cfg
}

type writerFunc func(p gaze.Point) error

func (f writerFunc) Encode(p gaze.Point) error { return f(p) }

// recordWriter keeps every point it is given.
type recordWriter struct {
	mu     sync.Mutex
	points []gaze.Point
}

func (r *recordWriter) Encode(p gaze.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
	return nil
}

func (r *recordWriter) Points() []gaze.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gaze.Point(nil), r.points...)
}

// gateWriter announces each write on entered and holds it until release is closed.
type gateWriter struct {
	recordWriter
	entered chan gaze.Point
	release chan struct{}
}

func newGateWriter() *gateWriter {
	return &gateWriter{
		entered: make(chan gaze.Point, 16),
		release: make(chan struct{}),
	}
}

func (g *gateWriter) Encode(p gaze.Point) error {
	g.entered <- p
	<-g.release
	return g.recordWriter.Encode(p)
}
