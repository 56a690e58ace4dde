//go:build nogocv

package camera

import (
	"context"
	"errors"
	"log/slog"
)

// GoCVSource is unavailable in builds without OpenCV.
type GoCVSource struct {
	cfg Config
}

// NewGoCVSource returns a source whose Open always fails.
func NewGoCVSource(cfg Config, logger *slog.Logger) *GoCVSource {
	return &GoCVSource{cfg: cfg}
}

// Open returns an error in builds without OpenCV.
func (s *GoCVSource) Open(ctx context.Context) error {
	return errors.New("gocv capture is not available (built with nogocv)")
}

// Read returns ErrNotOpen.
func (s *GoCVSource) Read(ctx context.Context) (Frame, error) {
	return Frame{}, ErrNotOpen
}

// Name returns the backend name.
func (s *GoCVSource) Name() string {
	return string(BackendGoCV)
}

// Close is a no-op.
func (s *GoCVSource) Close() error {
	return nil
}
