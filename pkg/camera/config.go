// Package camera provides frame capture from the default video device.
//
// This package supports multiple backends:
//   - gocv (OpenCV VideoCapture) - default, emits BGR frames
//   - ffmpeg (subprocess, rawvideo rgb24) - when OpenCV capture is unavailable
//   - Mock - CI/Testing without hardware
package camera

import (
	"fmt"
	"strconv"
)

// Backend represents the capture backend type.
type Backend string

const (
	// BackendGoCV uses OpenCV's VideoCapture.
	BackendGoCV Backend = "gocv"
	// BackendFFmpeg reads raw frames from an ffmpeg subprocess.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendMock uses a scripted source for testing.
	BackendMock Backend = "mock"
)

// Device limits
const (
	MaxWidth     = 7680
	MaxHeight    = 4320
	MaxFramerate = 240
)

// Config holds camera configuration.
type Config struct {
	// Backend selects the capture implementation.
	Backend Backend `mapstructure:"backend" yaml:"backend" json:"backend"`

	// Device is the camera identifier.
	// Examples:
	//   - gocv: "0" (default camera), "/dev/video2", "rtsp://..."
	//   - ffmpeg: "/dev/video0" (v4l2), "video=Integrated Camera" (dshow), "0" (avfoundation)
	Device string `mapstructure:"device" yaml:"device" json:"device"`

	// Width and Height request a capture size. 0 keeps the device default.
	// The ffmpeg backend needs both to size its raw frames.
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`

	// Framerate requests a capture rate. 0 keeps the device default.
	Framerate int `mapstructure:"framerate" yaml:"framerate" json:"framerate"`

	// Preset names a capture size (vga, 720p, 1080p, fast). See ApplyPreset.
	Preset string `mapstructure:"preset" yaml:"preset,omitempty" json:"preset,omitempty"`

	// InputFormat overrides the ffmpeg input format (v4l2, dshow, avfoundation).
	// Empty selects one from the platform.
	InputFormat string `mapstructure:"input_format" yaml:"input_format" json:"input_format"`
}

// DefaultConfig returns the default camera at its native resolution.
func DefaultConfig() Config {
	return Config{
		Backend: BackendGoCV,
		Device:  "0",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Backend {
	case BackendGoCV, BackendFFmpeg, BackendMock:
	default:
		errors = append(errors, fmt.Sprintf("backend must be gocv, ffmpeg, or mock (got %q)", c.Backend))
	}

	if !knownPreset(c.Preset) {
		errors = append(errors, fmt.Sprintf("unknown preset %q", c.Preset))
	}

	if c.Device == "" && c.Backend != BackendMock {
		errors = append(errors, "device must not be empty")
	}

	// Resolution
	if c.Width < 0 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 0 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must be set together")
	}
	if c.Framerate < 0 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 0 and %d", MaxFramerate))
	}

	if c.Backend == BackendFFmpeg && (c.Width == 0 || c.Height == 0) {
		errors = append(errors, "ffmpeg backend requires width and height")
	}

	return errors
}

// DeviceIndex returns the numeric device index if Device is an integer.
func (c *Config) DeviceIndex() (int, bool) {
	id, err := strconv.Atoi(c.Device)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
