package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of loop counters.
type Stats struct {
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"started_at"`
	FramesRead      int64     `json:"frames_read"`
	ReadFailures    int64     `json:"read_failures"`
	DetectErrors    int64     `json:"detect_errors"`
	FramesWithFaces int64     `json:"frames_with_faces"`
	FacesDetected   int64     `json:"faces_detected"`
	MessagesSent    int64     `json:"messages_sent"`
	MessagesDropped int64     `json:"messages_dropped"`
}

type counters struct {
	running         atomic.Bool
	startedAt       atomic.Int64 // Unix nanoseconds
	framesRead      atomic.Int64
	readFailures    atomic.Int64
	detectErrors    atomic.Int64
	framesWithFaces atomic.Int64
	facesDetected   atomic.Int64
	messagesSent    atomic.Int64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Running:         c.running.Load(),
		FramesRead:      c.framesRead.Load(),
		ReadFailures:    c.readFailures.Load(),
		DetectErrors:    c.detectErrors.Load(),
		FramesWithFaces: c.framesWithFaces.Load(),
		FacesDetected:   c.facesDetected.Load(),
		MessagesSent:    c.messagesSent.Load(),
	}
	if ns := c.startedAt.Load(); ns != 0 {
		s.StartedAt = time.Unix(0, ns)
	}
	return s
}
