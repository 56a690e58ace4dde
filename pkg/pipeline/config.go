// Package pipeline runs the capture loop: read a frame, detect landmarks,
// estimate gaze and stream one message per face.
package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// OverflowPolicy decides what a full outbound queue does with a new point.
type OverflowPolicy string

const (
	// PolicyBlock makes Push wait for room, throttling capture to the reader.
	PolicyBlock OverflowPolicy = "block"
	// PolicyDropOldest discards the oldest queued point to make room.
	PolicyDropOldest OverflowPolicy = "drop_oldest"
)

// ParseOverflowPolicy parses a policy name. Empty means PolicyBlock.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return PolicyBlock, nil
	case "drop_oldest", "drop-oldest", "dropoldest":
		return PolicyDropOldest, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q (want block or drop_oldest)", s)
	}
}

// Config holds capture loop configuration.
type Config struct {
	// QueueSize is the outbound queue capacity.
	// 0 writes each message from the loop itself, fully synchronous.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`

	// Overflow applies when the queue is full.
	Overflow OverflowPolicy `mapstructure:"overflow" yaml:"overflow" json:"overflow"`

	// MaxConsecutiveReadFailures stops the loop with ErrCameraStalled.
	// 0 means unlimited.
	MaxConsecutiveReadFailures int `mapstructure:"max_consecutive_read_failures" yaml:"max_consecutive_read_failures" json:"max_consecutive_read_failures"`

	// ReadRetryBackoff is the pause after a failed read.
	ReadRetryBackoff time.Duration `mapstructure:"read_retry_backoff" yaml:"read_retry_backoff" json:"read_retry_backoff"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:                  0,
		Overflow:                   PolicyBlock,
		MaxConsecutiveReadFailures: 300, // ~3s of a dead device at the default backoff
		ReadRetryBackoff:           10 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must be >= 0, got %d", c.QueueSize)
	}
	if _, err := ParseOverflowPolicy(string(c.Overflow)); err != nil {
		return err
	}
	if c.MaxConsecutiveReadFailures < 0 {
		return fmt.Errorf("max_consecutive_read_failures must be >= 0, got %d", c.MaxConsecutiveReadFailures)
	}
	if c.ReadRetryBackoff < 0 {
		return fmt.Errorf("read_retry_backoff must be >= 0, got %s", c.ReadRetryBackoff)
	}
	return nil
}
