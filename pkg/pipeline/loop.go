package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// errShutdown marks a context cancellation seen while emitting.
var errShutdown = errors.New("pipeline: shutting down")

// Sample is one emitted gaze point.
type Sample struct {
	Seq   uint64     `json:"seq"`  // Frame sequence number
	Face  int        `json:"face"` // Index within the frame, detection order
	Point gaze.Point `json:"point"`
	Time  time.Time  `json:"time"`
}

// Option configures a Loop.
type Option func(*Loop)

// WithObserver registers fn to receive every sample written to the output.
// It is called only after the message was written, so it never sees points
// that a drop_oldest queue discarded. Without a queue fn runs on the loop
// goroutine; with one it runs on the queue's drain goroutine. Either way it
// must not block.
func WithObserver(fn func(Sample)) Option {
	return func(l *Loop) {
		l.observer = fn
	}
}

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop reads frames from a camera source and streams one gaze message per
// detected face. Frames are processed strictly in order: a frame's messages
// are written before the next frame is read.
type Loop struct {
	src      camera.Source
	det      detection.Detector
	est      *gaze.Estimator
	w        MessageWriter
	cfg      Config
	logger   *slog.Logger
	observer func(Sample)

	outbox atomic.Pointer[Outbox]
	stats  counters
}

// New creates a capture loop. The loop owns src for the duration of Run.
func New(src camera.Source, det detection.Detector, est *gaze.Estimator, w MessageWriter, cfg Config, opts ...Option) *Loop {
	if est == nil {
		est = gaze.NewEstimator()
	}

	l := &Loop{
		src:    src,
		det:    det,
		est:    est,
		w:      w,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run opens the camera and processes frames until the stream ends, ctx is
// cancelled or a fatal error occurs. The camera is closed on every exit path.
// Stream end and cancellation return nil.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid loop config: %w", err)
	}

	if err := l.src.Open(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCameraUnavailable, l.src.Name(), err)
	}
	defer func() {
		if cerr := l.src.Close(); cerr != nil {
			l.logger.Warn("camera close failed", "error", cerr)
		}
		l.logger.Info("camera released", "source", l.src.Name())
	}()

	if l.cfg.QueueSize > 0 {
		ob := NewOutbox(l.w, l.cfg.QueueSize, l.cfg.Overflow, l.observer)
		l.outbox.Store(ob)
		defer func() {
			if cerr := ob.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: %w", ErrOutput, cerr)
			}
		}()
	}

	l.stats.startedAt.Store(time.Now().UnixNano())
	l.stats.running.Store(true)
	defer l.stats.running.Store(false)

	l.logger.Info("capture loop started",
		"source", l.src.Name(),
		"queue_size", l.cfg.QueueSize,
		"overflow", l.cfg.Overflow,
		"max_consecutive_read_failures", l.cfg.MaxConsecutiveReadFailures,
	)

	failures := 0
	for {
		if ctx.Err() != nil {
			l.logger.Info("capture loop cancelled")
			return nil
		}

		frame, err := l.src.Read(ctx)
		if err != nil {
			if errors.Is(err, camera.ErrClosed) {
				l.logger.Info("camera stream ended", "frames", l.stats.framesRead.Load())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}

			failures++
			l.stats.readFailures.Add(1)
			l.logger.Debug("frame read failed", "error", err, "consecutive", failures)

			if limit := l.cfg.MaxConsecutiveReadFailures; limit > 0 && failures >= limit {
				return fmt.Errorf("%w: %d consecutive read failures: %w", ErrCameraStalled, failures, err)
			}
			if l.cfg.ReadRetryBackoff > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(l.cfg.ReadRetryBackoff):
				}
			}
			continue
		}
		failures = 0
		l.stats.framesRead.Add(1)

		if err := l.process(ctx, frame); err != nil {
			if errors.Is(err, errShutdown) {
				return nil
			}
			return err
		}
	}
}

// process runs detection and estimation on one frame and emits its points.
func (l *Loop) process(ctx context.Context, frame camera.Frame) error {
	rgb := camera.Convert(frame, camera.RGB)

	sets, err := l.det.Detect(rgb)
	if err != nil {
		if errors.Is(err, detection.ErrDetectorClosed) {
			return err
		}
		l.stats.detectErrors.Add(1)
		l.logger.Debug("detection failed", "seq", frame.Seq, "error", err)
		return nil
	}
	if len(sets) == 0 {
		return nil
	}

	l.stats.framesWithFaces.Add(1)
	l.stats.facesDetected.Add(int64(len(sets)))

	for i, set := range sets {
		p, err := l.est.Estimate(set)
		if err != nil {
			return fmt.Errorf("frame %d face %d: %w", frame.Seq, i, err)
		}
		if err := l.emit(ctx, Sample{Seq: frame.Seq, Face: i, Point: p, Time: frame.Timestamp}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) emit(ctx context.Context, s Sample) error {
	if ob := l.outbox.Load(); ob != nil {
		err := ob.Push(ctx, s)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return errShutdown
		}
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}

	if err := l.w.Encode(s.Point); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	l.stats.messagesSent.Add(1)
	if l.observer != nil {
		l.observer(s)
	}
	return nil
}

// Stats returns a snapshot of the loop counters. Safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	s := l.stats.snapshot()
	if ob := l.outbox.Load(); ob != nil {
		s.MessagesSent += ob.Sent()
		s.MessagesDropped = ob.Dropped()
	}
	return s
}
