package detection

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrDetectorClosed is returned when the detector can no longer serve frames.
	ErrDetectorClosed = errors.New("detection: detector closed")

	// ErrModelNotFound is returned when a model file is missing.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrInvalidFrame is returned for frames whose buffer does not match their size.
	ErrInvalidFrame = errors.New("detection: invalid frame")
)

// WorkerError is a failure reported by the landmark subprocess for one frame.
type WorkerError struct {
	Message string
}

// Error implements the error interface.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("landmark worker error: %s", e.Message)
}
