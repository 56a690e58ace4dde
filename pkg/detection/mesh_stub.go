//go:build nogocv

package detection

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// MeshDetector is a stub when built without OpenCV.
type MeshDetector struct{}

// NewMesh returns an error when built without OpenCV.
func NewMesh(cfg Config, logger *slog.Logger) (*MeshDetector, error) {
	return nil, errors.New("mesh detector not available: built with nogocv")
}

// Detect is not implemented without OpenCV.
func (d *MeshDetector) Detect(frame camera.Frame) ([]gaze.LandmarkSet, error) {
	return nil, ErrDetectorClosed
}

// Close is a no-op.
func (d *MeshDetector) Close() error {
	return nil
}
