package detection

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxFaces != 1 {
		t.Errorf("MaxFaces = %d, want 1", cfg.MaxFaces)
	}
	if !cfg.RefineLandmarks {
		t.Error("RefineLandmarks should default to true")
	}
	if cfg.MinDetectionConfidence != 0.5 || cfg.MinTrackingConfidence != 0.5 {
		t.Errorf("confidences = %v/%v, want 0.5/0.5", cfg.MinDetectionConfidence, cfg.MinTrackingConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"mock backend", func(c *Config) { c.Backend = BackendMock }, false},
		{"unknown backend", func(c *Config) { c.Backend = "tflite" }, true},
		{"zero faces", func(c *Config) { c.MaxFaces = 0 }, true},
		{"several faces", func(c *Config) { c.MaxFaces = 4 }, false},
		{"detection above one", func(c *Config) { c.MinDetectionConfidence = 1.5 }, true},
		{"tracking negative", func(c *Config) { c.MinTrackingConfidence = -0.1 }, true},
		{"thresholds at bounds", func(c *Config) { c.MinDetectionConfidence, c.MinTrackingConfidence = 0, 1 }, false},
		{"worker without command", func(c *Config) { c.Backend = BackendWorker; c.WorkerCommand = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_MeshModel(t *testing.T) {
	cfg := DefaultConfig()

	path, size := cfg.MeshModel()
	if path != cfg.RefinedMeshModelPath || size != RefinedMeshInputSize {
		t.Errorf("refined MeshModel() = %s, %d", path, size)
	}
	if cfg.ExpectedLandmarks() != gaze.RefinedMeshLandmarks {
		t.Errorf("refined ExpectedLandmarks() = %d", cfg.ExpectedLandmarks())
	}

	cfg.RefineLandmarks = false
	path, size = cfg.MeshModel()
	if path != cfg.MeshModelPath || size != MeshInputSize {
		t.Errorf("base MeshModel() = %s, %d", path, size)
	}
	if cfg.ExpectedLandmarks() != gaze.MeshLandmarks {
		t.Errorf("base ExpectedLandmarks() = %d", cfg.ExpectedLandmarks())
	}
}

func TestNew_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	d, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.Close()

	if _, ok := d.(*Mock); !ok {
		t.Errorf("New() = %T, want *Mock", d)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFaces = 0

	d, err := New(cfg, nil)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if d != nil {
		t.Errorf("New() returned non-nil detector %v on error", d)
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FaceModelPath = "/nonexistent/face.onnx"

	d, err := New(cfg, nil)
	if err == nil {
		d.Close()
		t.Fatal("expected error for missing model")
	}
	if d != nil {
		t.Errorf("New() returned non-nil detector %v on error", d)
	}
}

func TestMock_Script(t *testing.T) {
	face := FaceAt(gaze.MeshLandmarks, gaze.Point{X: 0.4, Y: 0.5}, gaze.Point{X: 0.6, Y: 0.5})
	boom := errors.New("inference failed")

	m := NewMock(
		MockResult{Sets: []gaze.LandmarkSet{face}},
		MockResult{Err: boom},
	)
	frame := camera.SolidFrame(2, 2, camera.RGB, 1, 2, 3)

	sets, err := m.Detect(frame)
	if err != nil || len(sets) != 1 {
		t.Fatalf("first Detect() = %d sets, %v", len(sets), err)
	}

	if _, err := m.Detect(frame); !errors.Is(err, boom) {
		t.Errorf("second Detect() error = %v, want %v", err, boom)
	}

	sets, err = m.Detect(frame)
	if err != nil || len(sets) != 0 {
		t.Errorf("exhausted Detect() = %d sets, %v; want no faces", len(sets), err)
	}

	if got := len(m.Frames()); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}

	m.Close()
	if !m.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := m.Detect(frame); !errors.Is(err, ErrDetectorClosed) {
		t.Errorf("Detect() after Close = %v, want ErrDetectorClosed", err)
	}
}

func TestMock_DetectFunc(t *testing.T) {
	m := NewMock()
	m.DetectFunc = func(f camera.Frame) ([]gaze.LandmarkSet, error) {
		return []gaze.LandmarkSet{{Score: float64(f.Width)}}, nil
	}

	sets, err := m.Detect(camera.SolidFrame(7, 1, camera.RGB, 0, 0, 0))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(sets) != 1 || sets[0].Score != 7 {
		t.Errorf("Detect() = %+v", sets)
	}
}

func TestFaceAt(t *testing.T) {
	set := FaceAt(gaze.RefinedMeshLandmarks, gaze.Point{X: 0.25, Y: 0.375}, gaze.Point{X: 0.75, Y: 0.625})

	if set.Len() != gaze.RefinedMeshLandmarks {
		t.Fatalf("Len() = %d", set.Len())
	}

	p, err := gaze.NewEstimator().Estimate(set)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if p.X != 0.5 || p.Y != 0.5 {
		t.Errorf("Estimate() = %v, want {0.5 0.5}", p)
	}
}
