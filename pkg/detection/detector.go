// Package detection provides facial landmark detection behind a single-method interface.
package detection

import (
	"fmt"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Detector is the interface for landmark detection backends.
type Detector interface {
	// Detect finds faces in an RGB frame and returns one landmark set per face,
	// best first. An empty result means no face was found.
	Detect(frame camera.Frame) ([]gaze.LandmarkSet, error)

	// Close releases resources
	Close() error
}

// Backend selects a detector implementation.
type Backend string

const (
	// BackendMesh runs YuNet and a face mesh ONNX model through OpenCV.
	BackendMesh Backend = "mesh"
	// BackendWorker delegates to a landmark subprocess.
	BackendWorker Backend = "worker"
	// BackendMock returns scripted results.
	BackendMock Backend = "mock"
)

// Mesh model input sizes
const (
	MeshInputSize        = 192 // face_landmark (468 points)
	RefinedMeshInputSize = 256 // face_landmarks_detector (478 points with iris)
)

// Config holds detector configuration.
// Thresholds are fixed for the lifetime of a detector session.
type Config struct {
	Backend Backend `mapstructure:"backend" yaml:"backend" json:"backend"`

	MaxFaces               int     `mapstructure:"max_faces" yaml:"max_faces" json:"max_faces"`
	RefineLandmarks        bool    `mapstructure:"refine_landmarks" yaml:"refine_landmarks" json:"refine_landmarks"`
	MinDetectionConfidence float64 `mapstructure:"min_detection_confidence" yaml:"min_detection_confidence" json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `mapstructure:"min_tracking_confidence" yaml:"min_tracking_confidence" json:"min_tracking_confidence"`

	// Mesh backend
	FaceModelPath        string `mapstructure:"face_model" yaml:"face_model" json:"face_model"`
	MeshModelPath        string `mapstructure:"mesh_model" yaml:"mesh_model" json:"mesh_model"`
	RefinedMeshModelPath string `mapstructure:"refined_mesh_model" yaml:"refined_mesh_model" json:"refined_mesh_model"`

	// Worker backend: argv of the landmark subprocess
	WorkerCommand []string `mapstructure:"worker_command" yaml:"worker_command" json:"worker_command"`
}

// DefaultConfig returns the session defaults: one face, refined landmarks,
// 0.5 detection and tracking confidence.
func DefaultConfig() Config {
	return Config{
		Backend:                BackendMesh,
		MaxFaces:               1,
		RefineLandmarks:        true,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		FaceModelPath:          "models/face_detection_yunet.onnx",
		MeshModelPath:          "models/face_landmark.onnx",
		RefinedMeshModelPath:   "models/face_landmarks_detector.onnx",
		WorkerCommand:          []string{"python3", "-u", "scripts/face_mesh_worker.py"},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMesh, BackendWorker, BackendMock:
	default:
		return fmt.Errorf("unknown detector backend %q", c.Backend)
	}
	if c.MaxFaces < 1 {
		return fmt.Errorf("max_faces must be at least 1, got %d", c.MaxFaces)
	}
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("min_detection_confidence must be in [0,1], got %v", c.MinDetectionConfidence)
	}
	if c.MinTrackingConfidence < 0 || c.MinTrackingConfidence > 1 {
		return fmt.Errorf("min_tracking_confidence must be in [0,1], got %v", c.MinTrackingConfidence)
	}
	if c.Backend == BackendWorker && len(c.WorkerCommand) == 0 {
		return fmt.Errorf("worker backend requires worker_command")
	}
	return nil
}

// MeshModel returns the mesh model path and input size for the landmark mode.
func (c *Config) MeshModel() (string, int) {
	if c.RefineLandmarks {
		return c.RefinedMeshModelPath, RefinedMeshInputSize
	}
	return c.MeshModelPath, MeshInputSize
}

// ExpectedLandmarks returns the mesh size for the landmark mode.
func (c *Config) ExpectedLandmarks() int {
	if c.RefineLandmarks {
		return gaze.RefinedMeshLandmarks
	}
	return gaze.MeshLandmarks
}
