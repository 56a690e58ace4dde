package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfgFile string
	v       = config.NewViper()

	rootCmd = &cobra.Command{
		Use:   "gaze-stream",
		Short: "Stream per-face gaze points as binary messages on stdout",
		Long: `gaze-stream reads frames from a camera, runs a face landmark detector and
writes one message per detected face to stdout:

  [u32 big-endian length = 8][f32 x][f32 y]

x and y are the mean of the two eye-corner landmarks, normalized to the
frame. Logs go to stderr. Stop with Ctrl+C.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStream,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")

	local := rootCmd.Flags()
	local.String("camera", "", "capture backend (gocv, ffmpeg, mock)")
	local.String("device", "", "camera device index or path")
	local.String("preset", "", "capture size preset (vga, 720p, 1080p, fast)")
	local.Int("width", 0, "capture width")
	local.Int("height", 0, "capture height")
	local.String("detector", "", "landmark backend (mesh, worker, mock)")
	local.Int("max-faces", 0, "maximum faces per frame")
	local.Bool("refine-landmarks", true, "use the 478-point refined mesh")
	local.Float64("min-detection-confidence", 0, "face detection threshold")
	local.Float64("min-tracking-confidence", 0, "landmark presence threshold")
	local.String("payload-order", "", "float byte order (little, big, native)")
	local.Int("queue", 0, "bounded output queue size (0 writes inline)")
	local.String("overflow", "", "queue overflow policy (block, drop_oldest)")
	local.String("status-addr", "", "serve status and live feeds on this address")
	local.String("record-dsn", "", "PostgreSQL DSN for recording samples")

	bind := map[string]string{
		"log.level":                         "log-level",
		"log.format":                        "log-format",
		"camera.backend":                    "camera",
		"camera.device":                     "device",
		"camera.preset":                     "preset",
		"camera.width":                      "width",
		"camera.height":                     "height",
		"detector.backend":                  "detector",
		"detector.max_faces":                "max-faces",
		"detector.refine_landmarks":         "refine-landmarks",
		"detector.min_detection_confidence": "min-detection-confidence",
		"detector.min_tracking_confidence":  "min-tracking-confidence",
		"stream.payload_order":              "payload-order",
		"stream.queue_size":                 "queue",
		"stream.overflow":                   "overflow",
		"status.addr":                       "status-addr",
		"record.dsn":                        "record-dsn",
	}
	for key, name := range bind {
		f := flags.Lookup(name)
		if f == nil {
			f = local.Lookup(name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A closed stdout must surface as a write error, not kill the process.
	signal.Ignore(syscall.SIGPIPE)

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}
