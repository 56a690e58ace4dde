// Package config loads gaze-stream configuration from defaults, an optional
// YAML file, GAZE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// EnvPrefix prefixes every environment override, e.g. GAZE_DETECTOR_MAX_FACES.
const EnvPrefix = "GAZE"

// Config is the complete gaze-stream configuration.
type Config struct {
	Camera   camera.Config    `mapstructure:"camera" yaml:"camera" json:"camera"`
	Detector detection.Config `mapstructure:"detector" yaml:"detector" json:"detector"`
	Stream   StreamConfig     `mapstructure:"stream" yaml:"stream" json:"stream"`
	Loop     LoopConfig       `mapstructure:"loop" yaml:"loop" json:"loop"`
	Status   StatusConfig     `mapstructure:"status" yaml:"status" json:"status"`
	Record   RecordConfig     `mapstructure:"record" yaml:"record" json:"record"`
	Log      LogConfig        `mapstructure:"log" yaml:"log" json:"log"`
}

// StreamConfig controls the output stream.
type StreamConfig struct {
	// PayloadOrder is the float byte order: little, big or native.
	// The length header is always big-endian.
	PayloadOrder string `mapstructure:"payload_order" yaml:"payload_order" json:"payload_order"`

	// QueueSize enables a bounded outbound queue when > 0.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`

	// Overflow is block or drop_oldest.
	Overflow string `mapstructure:"overflow" yaml:"overflow" json:"overflow"`
}

// LoopConfig controls read retry.
type LoopConfig struct {
	MaxConsecutiveReadFailures int           `mapstructure:"max_consecutive_read_failures" yaml:"max_consecutive_read_failures" json:"max_consecutive_read_failures"`
	ReadRetryBackoff           time.Duration `mapstructure:"read_retry_backoff" yaml:"read_retry_backoff" json:"read_retry_backoff"`
}

// StatusConfig controls the optional status server.
type StatusConfig struct {
	// Addr enables the server when non-empty, e.g. "127.0.0.1:8090".
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// RecordConfig controls the optional Postgres sample recorder.
type RecordConfig struct {
	// DSN enables recording when non-empty.
	DSN           string        `mapstructure:"dsn" yaml:"dsn" json:"-"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval" json:"flush_interval"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	loop := pipeline.DefaultConfig()
	return Config{
		Camera:   camera.DefaultConfig(),
		Detector: detection.DefaultConfig(),
		Stream: StreamConfig{
			PayloadOrder: "little",
			QueueSize:    loop.QueueSize,
			Overflow:     string(loop.Overflow),
		},
		Loop: LoopConfig{
			MaxConsecutiveReadFailures: loop.MaxConsecutiveReadFailures,
			ReadRetryBackoff:           loop.ReadRetryBackoff,
		},
		Record: RecordConfig{
			BatchSize:     64,
			FlushInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables can override it.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("camera.backend", string(d.Camera.Backend))
	v.SetDefault("camera.device", d.Camera.Device)
	v.SetDefault("camera.width", d.Camera.Width)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("camera.framerate", d.Camera.Framerate)
	v.SetDefault("camera.preset", d.Camera.Preset)
	v.SetDefault("camera.input_format", d.Camera.InputFormat)

	v.SetDefault("detector.backend", string(d.Detector.Backend))
	v.SetDefault("detector.max_faces", d.Detector.MaxFaces)
	v.SetDefault("detector.refine_landmarks", d.Detector.RefineLandmarks)
	v.SetDefault("detector.min_detection_confidence", d.Detector.MinDetectionConfidence)
	v.SetDefault("detector.min_tracking_confidence", d.Detector.MinTrackingConfidence)
	v.SetDefault("detector.face_model", d.Detector.FaceModelPath)
	v.SetDefault("detector.mesh_model", d.Detector.MeshModelPath)
	v.SetDefault("detector.refined_mesh_model", d.Detector.RefinedMeshModelPath)
	v.SetDefault("detector.worker_command", d.Detector.WorkerCommand)

	v.SetDefault("stream.payload_order", d.Stream.PayloadOrder)
	v.SetDefault("stream.queue_size", d.Stream.QueueSize)
	v.SetDefault("stream.overflow", d.Stream.Overflow)

	v.SetDefault("loop.max_consecutive_read_failures", d.Loop.MaxConsecutiveReadFailures)
	v.SetDefault("loop.read_retry_backoff", d.Loop.ReadRetryBackoff)

	v.SetDefault("status.addr", d.Status.Addr)

	v.SetDefault("record.dsn", d.Record.DSN)
	v.SetDefault("record.batch_size", d.Record.BatchSize)
	v.SetDefault("record.flush_interval", d.Record.FlushInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// NewViper returns a viper instance with defaults and GAZE_* env binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if non-empty) into v and returns the validated config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Camera.ApplyPreset(); err != nil {
		return nil, fmt.Errorf("invalid config: camera: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	for _, msg := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", msg))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if _, err := protocol.ParseByteOrder(c.Stream.PayloadOrder); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if loop, err := c.Pipeline(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	} else if err := loop.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("loop: %w", err))
	}
	if c.Record.DSN != "" {
		if c.Record.BatchSize < 1 {
			errs = append(errs, fmt.Errorf("record: batch_size must be at least 1, got %d", c.Record.BatchSize))
		}
		if c.Record.FlushInterval <= 0 {
			errs = append(errs, fmt.Errorf("record: flush_interval must be positive, got %s", c.Record.FlushInterval))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Pipeline returns the capture loop configuration.
func (c *Config) Pipeline() (pipeline.Config, error) {
	policy, err := pipeline.ParseOverflowPolicy(c.Stream.Overflow)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		QueueSize:                  c.Stream.QueueSize,
		Overflow:                   policy,
		MaxConsecutiveReadFailures: c.Loop.MaxConsecutiveReadFailures,
		ReadRetryBackoff:           c.Loop.ReadRetryBackoff,
	}, nil
}

// YAML renders the configuration. The record DSN is redacted.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Record.DSN != "" {
		out.Record.DSN = "<redacted>"
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
