package camera

import (
	"fmt"
	"log/slog"
)

// New creates a camera source with the given configuration.
// The device is not opened until Source.Open is called.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating camera source",
		"backend", cfg.Backend,
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(logger), nil
	case BackendGoCV:
		return NewGoCVSource(cfg, logger), nil
	case BackendFFmpeg:
		return NewFFmpegSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the list of supported backends.
func AvailableBackends() []Backend {
	return []Backend{BackendGoCV, BackendFFmpeg, BackendMock}
}
