package detection

import (
	"fmt"
	"log/slog"
)

// New creates a detector for cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating landmark detector",
		"backend", cfg.Backend,
		"max_faces", cfg.MaxFaces,
		"refine_landmarks", cfg.RefineLandmarks,
		"min_detection_confidence", cfg.MinDetectionConfidence,
		"min_tracking_confidence", cfg.MinTrackingConfidence,
	)

	switch cfg.Backend {
	case BackendMesh:
		d, err := NewMesh(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendWorker:
		d, err := NewWorker(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
