package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FFmpegSource reads raw rgb24 frames from an ffmpeg subprocess.
// Frames are read synchronously on the caller's goroutine, so a slow
// consumer simply leaves frames in the pipe.
type FFmpegSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	first  *Frame // read by Open, returned by the first Read
	closed bool
	seq    uint64

	framesRead   atomic.Int64
	readFailures atomic.Int64
}

// NewFFmpegSource creates an ffmpeg capture source.
func NewFFmpegSource(cfg Config, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSource{
		cfg:    cfg,
		logger: logger,
	}
}

// Args returns the ffmpeg command line for the configured device.
func (s *FFmpegSource) Args() []string {
	format := s.cfg.InputFormat
	if format == "" {
		format = defaultInputFormat()
	}

	device := s.cfg.Device
	if format == "dshow" && !strings.HasPrefix(device, "video=") {
		device = "video=" + device
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", format}
	if s.cfg.Framerate > 0 {
		args = append(args, "-framerate", fmt.Sprint(s.cfg.Framerate))
	}
	args = append(args,
		"-i", device,
		"-vf", fmt.Sprintf("scale=%d:%d", s.cfg.Width, s.cfg.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	return args
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "v4l2"
	}
}

// Open starts the ffmpeg process and waits for the first frame.
// ffmpeg starts even when the device is missing and exits right after, so a
// stream that ends before one full frame is reported as an open failure with
// ffmpeg's stderr, not as an empty stream.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	cmd := exec.Command("ffmpeg", s.Args()...)
	s.stderr.Reset()
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, s.stderr.String())
	}

	// Kill ffmpeg if ctx ends while we wait for the device.
	stop := context.AfterFunc(ctx, func() { cmd.Process.Kill() })
	first, err := s.readFrame(stdout)
	stop()
	if err != nil {
		stdout.Close()
		cmd.Process.Kill()
		cmd.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg produced no frames: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}

	s.cmd = cmd
	s.stdout = stdout
	s.first = &first
	s.closed = false

	s.logger.Info("camera opened",
		"device", s.cfg.Device,
		"width", s.cfg.Width,
		"height", s.cfg.Height,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// Read reads exactly one frame from the pipe.
func (s *FFmpegSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrClosed
	}
	if s.cmd == nil {
		return Frame{}, ErrNotOpen
	}

	if f := s.first; f != nil {
		s.first = nil
		return *f, nil
	}

	f, err := s.readFrame(s.stdout)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
			return Frame{}, ErrClosed
		}
		s.readFailures.Add(1)
		return Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return f, nil
}

func (s *FFmpegSource) readFrame(r io.Reader) (Frame, error) {
	buf := make([]byte, s.cfg.Width*s.cfg.Height*BytesPerPixel)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}

	s.seq++
	s.framesRead.Add(1)

	return Frame{
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Order:     RGB,
		Pix:       buf,
		Seq:       s.seq,
		Timestamp: time.Now(),
	}, nil
}

// Name returns the backend name.
func (s *FFmpegSource) Name() string {
	return string(BackendFFmpeg)
}

// Stats returns capture statistics.
func (s *FFmpegSource) Stats() SourceStats {
	return SourceStats{
		FramesRead:   s.framesRead.Load(),
		ReadFailures: s.readFailures.Load(),
		Backend:      s.Name(),
	}
}

// Close stops the ffmpeg process.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.cmd == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	s.cmd = nil
	s.first = nil

	s.logger.Info("camera closed",
		"device", s.cfg.Device,
		"frames", s.framesRead.Load(),
		"ffmpeg_stderr", strings.TrimSpace(s.stderr.String()),
	)
	return nil
}
