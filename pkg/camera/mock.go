package camera

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockStep is one scripted Read result.
type MockStep struct {
	Frame Frame
	Err   error
}

// MockSource is a scripted camera source for testing.
// Each Read consumes the next step; once the script is exhausted Read
// returns ErrClosed, like a device reaching the end of its stream.
type MockSource struct {
	logger *slog.Logger

	mu      sync.Mutex
	steps   []MockStep
	pos     int
	opened  bool
	closed  bool
	openErr error
	onRead  func(n int)
	seq     uint64

	opens        atomic.Int64
	closes       atomic.Int64
	framesRead   atomic.Int64
	readFailures atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithFrames scripts successful reads.
func WithFrames(frames ...Frame) MockSourceOption {
	return func(m *MockSource) {
		for _, f := range frames {
			m.steps = append(m.steps, MockStep{Frame: f})
		}
	}
}

// WithSteps scripts arbitrary read results.
func WithSteps(steps ...MockStep) MockSourceOption {
	return func(m *MockSource) {
		m.steps = append(m.steps, steps...)
	}
}

// WithOpenError makes Open fail with err.
func WithOpenError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.openErr = err
	}
}

// WithReadHook registers fn to run at the start of every Read.
// n is the 1-based read count. The hook runs without the mock's lock held,
// so it may block to simulate a slow device.
func WithReadHook(fn func(n int)) MockSourceOption {
	return func(m *MockSource) {
		m.onRead = fn
	}
}

// NewMockSource creates a new mock camera source.
func NewMockSource(logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open marks the source open.
func (m *MockSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens.Add(1)
	if m.openErr != nil {
		return m.openErr
	}
	if m.closed {
		return io.ErrClosedPipe
	}
	m.opened = true
	m.logger.Debug("mock camera opened", "steps", len(m.steps))
	return nil
}

// Read returns the next scripted step.
func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	hook := m.onRead
	n := m.pos + 1
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Frame{}, ErrClosed
	}
	if !m.opened {
		return Frame{}, ErrNotOpen
	}
	if m.pos >= len(m.steps) {
		return Frame{}, ErrClosed
	}

	step := m.steps[m.pos]
	m.pos++

	if step.Err != nil {
		m.readFailures.Add(1)
		return Frame{}, step.Err
	}

	m.seq++
	m.framesRead.Add(1)

	f := step.Frame
	f.Seq = m.seq
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	return f, nil
}

// Name returns the backend name.
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Stats returns capture statistics.
func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		FramesRead:   m.framesRead.Load(),
		ReadFailures: m.readFailures.Load(),
		Backend:      m.Name(),
	}
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closes.Add(1)
	m.closed = true
	m.opened = false
	return nil
}

// Opens returns how many times Open was called.
func (m *MockSource) Opens() int64 {
	return m.opens.Load()
}

// Closes returns how many times Close was called.
func (m *MockSource) Closes() int64 {
	return m.closes.Load()
}

// Reads returns how many scripted steps have been consumed.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// SolidFrame builds a frame filled with one pixel value given in RGB.
func SolidFrame(width, height int, order ColorOrder, r, g, b byte) Frame {
	pix := make([]byte, width*height*BytesPerPixel)
	first, third := r, b
	if order == BGR {
		first, third = b, r
	}
	for i := 0; i < len(pix); i += BytesPerPixel {
		pix[i] = first
		pix[i+1] = g
		pix[i+2] = third
	}
	return Frame{Width: width, Height: height, Order: order, Pix: pix}
}
