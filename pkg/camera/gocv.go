//go:build !nogocv

package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// GoCVSource captures frames with OpenCV's VideoCapture.
// Frames are delivered in BGR order.
type GoCVSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
	seq    uint64

	framesRead   atomic.Int64
	readFailures atomic.Int64
}

// NewGoCVSource creates an OpenCV capture source.
func NewGoCVSource(cfg Config, logger *slog.Logger) *GoCVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoCVSource{
		cfg:    cfg,
		logger: logger,
	}
}

// Open acquires the device.
func (s *GoCVSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc != nil {
		return nil
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, ok := s.cfg.DeviceIndex(); ok {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.OpenVideoCapture(s.cfg.Device)
	}
	if err != nil {
		return fmt.Errorf("open device %q: %w", s.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open device %q: not opened", s.cfg.Device)
	}

	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}
	if s.cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))
	}

	s.vc = vc
	s.mat = gocv.NewMat()
	s.closed = false

	s.logger.Info("camera opened",
		"device", s.cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)
	return nil
}

// Read grabs the next frame. A video file that has been played to the end
// returns ErrClosed.
func (s *GoCVSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrClosed
	}
	if s.vc == nil {
		return Frame{}, ErrNotOpen
	}
	if !s.vc.IsOpened() {
		return Frame{}, ErrClosed
	}

	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		if _, live := s.cfg.DeviceIndex(); !live &&
			inputExhausted(s.vc.Get(gocv.VideoCapturePosFrames), s.vc.Get(gocv.VideoCaptureFrameCount)) {
			return Frame{}, ErrClosed
		}
		s.readFailures.Add(1)
		return Frame{}, fmt.Errorf("%w: device %s returned no frame", ErrReadFailed, s.cfg.Device)
	}

	if s.mat.Channels() != BytesPerPixel {
		s.readFailures.Add(1)
		return Frame{}, fmt.Errorf("%w: unexpected %d channels", ErrReadFailed, s.mat.Channels())
	}

	s.seq++
	s.framesRead.Add(1)

	return Frame{
		Width:     s.mat.Cols(),
		Height:    s.mat.Rows(),
		Order:     BGR,
		Pix:       s.mat.ToBytes(),
		Seq:       s.seq,
		Timestamp: time.Now(),
	}, nil
}

// Name returns the backend name.
func (s *GoCVSource) Name() string {
	return string(BackendGoCV)
}

// Stats returns capture statistics.
func (s *GoCVSource) Stats() SourceStats {
	return SourceStats{
		FramesRead:   s.framesRead.Load(),
		ReadFailures: s.readFailures.Load(),
		Backend:      s.Name(),
	}
}

// Close releases the device.
func (s *GoCVSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.vc == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	s.mat.Close()
	err := s.vc.Close()
	s.vc = nil

	s.logger.Info("camera closed", "device", s.cfg.Device, "frames", s.framesRead.Load())
	return err
}
