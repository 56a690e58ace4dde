package pipeline

import "errors"

// Sentinel errors for loop termination.
var (
	// ErrCameraUnavailable is returned when the camera cannot be opened.
	ErrCameraUnavailable = errors.New("pipeline: camera unavailable")

	// ErrCameraStalled is returned after too many consecutive read failures.
	ErrCameraStalled = errors.New("pipeline: camera stalled")

	// ErrOutput is returned when a message cannot be written to the output stream.
	ErrOutput = errors.New("pipeline: output write failed")

	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("pipeline: outbox closed")
)
