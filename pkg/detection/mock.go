package detection

import (
	"sync"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// MockResult is one scripted Detect outcome.
type MockResult struct {
	Sets []gaze.LandmarkSet
	Err  error
}

// Mock is a mock detector for testing.
// Scripted results are returned in order; once exhausted Detect reports no faces.
type Mock struct {
	// DetectFunc overrides the script when set
	DetectFunc func(frame camera.Frame) ([]gaze.LandmarkSet, error)

	mu      sync.Mutex
	results []MockResult
	frames  []camera.Frame
	closed  bool
}

// NewMock creates a mock detector with scripted results.
func NewMock(results ...MockResult) *Mock {
	return &Mock{results: results}
}

// Detect returns the next scripted result.
func (m *Mock) Detect(frame camera.Frame) ([]gaze.LandmarkSet, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrDetectorClosed
	}
	m.frames = append(m.frames, frame)
	fn := m.DetectFunc
	var next *MockResult
	if fn == nil && len(m.results) > 0 {
		next = &m.results[0]
		m.results = m.results[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(frame)
	}
	if next == nil {
		return nil, nil
	}
	return next.Sets, next.Err
}

// Frames returns every frame passed to Detect.
func (m *Mock) Frames() []camera.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]camera.Frame(nil), m.frames...)
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close implements Detector.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FaceAt returns a landmark set of size n with both eye-corner landmarks at
// the given positions and every other landmark at the midpoint.
func FaceAt(n int, left, right gaze.Point) gaze.LandmarkSet {
	mid := gaze.Landmark{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2}
	points := make([]gaze.Landmark, n)
	for i := range points {
		points[i] = mid
	}
	if gaze.LeftEyeOuter < n {
		points[gaze.LeftEyeOuter] = gaze.Landmark{X: left.X, Y: left.Y}
	}
	if gaze.RightEyeOuter < n {
		points[gaze.RightEyeOuter] = gaze.Landmark{X: right.X, Y: right.Y}
	}
	return gaze.LandmarkSet{Points: points, Score: 1}
}
