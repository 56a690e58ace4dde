package camera

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrClosed is returned by Read when the device is closed or the stream is exhausted.
	// The capture loop treats it as the normal end of the stream.
	ErrClosed = errors.New("camera: closed")

	// ErrReadFailed is returned by Read for a transient failure (busy device, dropped frame).
	ErrReadFailed = errors.New("camera: frame read failed")

	// ErrNotOpen is returned by Read before Open succeeds.
	ErrNotOpen = errors.New("camera: not open")
)

// Source captures frames from a camera device.
type Source interface {
	// Open acquires the device. It fails if the device is unavailable.
	Open(ctx context.Context) error

	// Read blocks until the next frame is available.
	// Returns ErrClosed when the stream ends, or an error wrapping
	// ErrReadFailed for a failure the caller may retry.
	Read(ctx context.Context) (Frame, error)

	// Name returns the backend name (e.g., "gocv", "ffmpeg", "mock").
	Name() string

	// Close releases the device. It is safe to call Close multiple times.
	io.Closer
}

// SourceStats contains statistics about a camera source.
type SourceStats struct {
	// FramesRead is the total number of frames delivered.
	FramesRead int64 `json:"frames_read"`

	// ReadFailures is the number of failed reads.
	ReadFailures int64 `json:"read_failures"`

	// Backend is the name of the capture backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// inputExhausted reports whether a file-like input has been read to the end.
// pos and count are the next frame position and the total frame count as
// reported by the capture backend. Live devices and network streams report
// no count (zero or negative) and are never exhausted.
func inputExhausted(pos, count float64) bool {
	return count > 0 && pos >= count
}
