package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// flushTimeout bounds the final flush after the recorder is cancelled.
const flushTimeout = 5 * time.Second

// SampleWriter persists a batch of samples. Store implements it.
type SampleWriter interface {
	InsertSamples(ctx context.Context, sessionID string, samples []pipeline.Sample) error
}

// Recorder batches samples off the capture loop and writes them in the
// background. Observe never blocks; samples are dropped when the buffer is full.
type Recorder struct {
	w             SampleWriter
	session       string
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	in   chan pipeline.Sample
	done chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder creates a recorder. Call Run to start writing.
func NewRecorder(w SampleWriter, session string, batchSize int, flushInterval time.Duration, logger *slog.Logger) *Recorder {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		w:             w,
		session:       session,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		in:            make(chan pipeline.Sample, batchSize*4),
		done:          make(chan struct{}),
	}
}

// Observe queues a sample for writing.
func (r *Recorder) Observe(s pipeline.Sample) {
	select {
	case r.in <- s:
	default:
		r.dropped.Add(1)
	}
}

// Run writes batches until ctx is cancelled, then flushes what is buffered.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]pipeline.Sample, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.w.InsertSamples(ctx, r.session, batch); err != nil {
			r.failed.Add(int64(len(batch)))
			r.logger.Warn("failed to record samples", "count", len(batch), "error", err)
		} else {
			r.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case s := <-r.in:
			batch = append(batch, s)
			if len(batch) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case s := <-r.in:
					batch = append(batch, s)
				default:
					break drain
				}
			}
			fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			flush(fctx)
			cancel()
			return
		}
	}
}

// Done is closed when Run returns.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Written returns how many samples were stored.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Dropped returns how many samples were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Failed returns how many samples were lost to write errors.
func (r *Recorder) Failed() int64 { return r.failed.Load() }
