package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/store"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/protocol"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)
	session := uuid.NewString()
	logger := log.With("session", session)

	order, err := protocol.ParseByteOrder(cfg.Stream.PayloadOrder)
	if err != nil {
		return err
	}
	loopCfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	src, err := camera.New(cfg.Camera, logger.With("component", "camera"))
	if err != nil {
		return err
	}
	det, err := detection.New(cfg.Detector, logger.With("component", "detector"))
	if err != nil {
		return err
	}
	defer func() {
		if err := det.Close(); err != nil {
			logger.Warn("detector close failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		observers []func(pipeline.Sample)
		wg        sync.WaitGroup
		loop      *pipeline.Loop
	)

	if cfg.Record.DSN != "" {
		rec, closeStore, err := startRecorder(ctx, cfg, session, src.Name(), string(cfg.Detector.Backend), logger, &wg)
		if err != nil {
			return err
		}
		defer closeStore()
		observers = append(observers, rec.Observe)
	}

	var srv *web.Server
	if cfg.Status.Addr != "" {
		opts := web.Options{
			Addr:         cfg.Status.Addr,
			Session:      session,
			Camera:       src.Name(),
			Detector:     string(cfg.Detector.Backend),
			Stats:        func() pipeline.Stats { return loop.Stats() },
			PayloadOrder: order,
			Config:       cfg,
		}
		if ws, ok := src.(camera.SourceWithStats); ok {
			opts.CaptureStats = ws.Stats
		}
		srv = web.NewServer(opts, logger.With("component", "web"))
		observers = append(observers, srv.Publish)
	}

	enc := protocol.NewEncoder(os.Stdout, protocol.WithPayloadOrder(order))
	loop = pipeline.New(src, det, gaze.NewEstimator(), enc, loopCfg,
		pipeline.WithLogger(logger.With("component", "pipeline")),
		pipeline.WithObserver(fanOut(observers)),
	)

	// Serve only once loop is set; the stats handler reads it.
	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
		logger.Info("status server enabled", "addr", cfg.Status.Addr)
	}

	logger.Info("gaze stream starting",
		"camera", src.Name(),
		"detector", cfg.Detector.Backend,
		"max_faces", cfg.Detector.MaxFaces,
		"payload_order", order.String(),
	)

	runErr := loop.Run(ctx)
	cancel()
	wg.Wait()

	stats := loop.Stats()
	logger.Info("gaze stream stopped",
		"frames", stats.FramesRead,
		"faces", stats.FacesDetected,
		"messages", stats.MessagesSent,
		"dropped", stats.MessagesDropped,
	)

	return runErr
}

// startRecorder connects to Postgres, registers the session and starts the
// background recorder. The returned func closes the connection after the
// recorder has flushed.
func startRecorder(ctx context.Context, cfg *config.Config, session, cameraName, detectorName string, logger *slog.Logger, wg *sync.WaitGroup) (*store.Recorder, func(), error) {
	db, err := store.New(ctx, cfg.Record.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSession(ctx, session, cameraName, detectorName); err != nil {
		db.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to register session: %w", err)
	}

	rec := store.NewRecorder(db, session, cfg.Record.BatchSize, cfg.Record.FlushInterval, logger.With("component", "recorder"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Run(ctx)
	}()

	closeStore := func() {
		<-rec.Done()
		db.Close(context.Background())
		logger.Info("recorder closed", "written", rec.Written(), "dropped", rec.Dropped(), "failed", rec.Failed())
	}
	return rec, closeStore, nil
}

// fanOut combines observers into one callback. It returns nil when there
// are none so the loop skips sample construction.
func fanOut(observers []func(pipeline.Sample)) func(pipeline.Sample) {
	switch len(observers) {
	case 0:
		return nil
	case 1:
		return observers[0]
	}
	return func(s pipeline.Sample) {
		for _, fn := range observers {
			fn(s)
		}
	}
}
