package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// startPostgres runs a throwaway Postgres container and returns its DSN.
// It needs Docker.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	// testcontainers panics when the docker socket is missing.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("gaze_test"),
		postgres.WithUsername("gaze"),
		postgres.WithPassword("gaze"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

type noopLogger struct{}

func (noopLogger) Printf(format string, v ...interface{}) {}

func TestStoreIntegration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close(ctx)

	t.Run("insert and count", func(t *testing.T) {
		id := uuid.NewString()
		if err := s.EnsureSession(ctx, id, "mock", "mock"); err != nil {
			t.Fatalf("EnsureSession() error = %v", err)
		}
		// Second call is a no-op.
		if err := s.EnsureSession(ctx, id, "mock", "mock"); err != nil {
			t.Fatalf("EnsureSession() again error = %v", err)
		}

		samples := []pipeline.Sample{
			{Seq: 1, Face: 0, Point: gaze.Point{X: 0.5, Y: 0.5}, Time: time.Now()},
			{Seq: 1, Face: 1, Point: gaze.Point{X: 0.25, Y: 0.75}, Time: time.Now()},
			{Seq: 2, Face: 0, Point: gaze.Point{X: 0.4, Y: 0.6}},
		}
		if err := s.InsertSamples(ctx, id, samples); err != nil {
			t.Fatalf("InsertSamples() error = %v", err)
		}
		if err := s.InsertSamples(ctx, id, nil); err != nil {
			t.Fatalf("InsertSamples(nil) error = %v", err)
		}

		n, err := s.CountSamples(ctx, id)
		if err != nil {
			t.Fatalf("CountSamples() error = %v", err)
		}
		if n != int64(len(samples)) {
			t.Errorf("CountSamples() = %d, want %d", n, len(samples))
		}
	})

	t.Run("sessions are separate", func(t *testing.T) {
		a, b := uuid.NewString(), uuid.NewString()
		for _, id := range []string{a, b} {
			if err := s.EnsureSession(ctx, id, "ffmpeg", "mesh"); err != nil {
				t.Fatalf("EnsureSession(%s) error = %v", id, err)
			}
		}
		if err := s.InsertSamples(ctx, a, []pipeline.Sample{{Seq: 1}}); err != nil {
			t.Fatalf("InsertSamples() error = %v", err)
		}

		if n, _ := s.CountSamples(ctx, b); n != 0 {
			t.Errorf("CountSamples(b) = %d, want 0", n)
		}
	})

	t.Run("recorder writes through", func(t *testing.T) {
		id := uuid.NewString()
		if err := s.EnsureSession(ctx, id, "mock", "mock"); err != nil {
			t.Fatalf("EnsureSession() error = %v", err)
		}

		rec := NewRecorder(s, id, 2, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
		rctx, cancel := context.WithCancel(ctx)
		go rec.Run(rctx)
		for i := 1; i <= 5; i++ {
			rec.Observe(pipeline.Sample{Seq: uint64(i), Point: gaze.Point{X: 0.1, Y: 0.2}})
		}
		cancel()
		<-rec.Done()

		n, err := s.CountSamples(ctx, id)
		if err != nil {
			t.Fatalf("CountSamples() error = %v", err)
		}
		if n != 5 || rec.Written() != 5 {
			t.Errorf("stored %d, recorder wrote %d, want 5", n, rec.Written())
		}
	})

	t.Run("reset drops tables", func(t *testing.T) {
		if err := s.Reset(ctx); err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if _, err := s.CountSamples(ctx, uuid.NewString()); err == nil {
			t.Error("CountSamples() after Reset should fail without tables")
		}
	})
}
