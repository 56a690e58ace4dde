// Package store records gaze sessions and samples in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// Store persists gaze samples.
type Store struct {
	conn *pgx.Conn
}

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string) (*Store, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS gaze_sessions (
			id TEXT PRIMARY KEY,
			camera TEXT NOT NULL,
			detector TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS gaze_samples (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT REFERENCES gaze_sessions(id),
			frame_seq BIGINT NOT NULL,
			face INT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS gaze_samples_session_idx ON gaze_samples (session_id, frame_seq);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureSession records a stream session.
func (s *Store) EnsureSession(ctx context.Context, id, camera, detector string) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO gaze_sessions (id, camera, detector, started_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING
	`, id, camera, detector)
	return err
}

// InsertSamples bulk-inserts samples for a session.
func (s *Store) InsertSamples(ctx context.Context, sessionID string, samples []pipeline.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	rows := make([][]any, len(samples))
	for i, smp := range samples {
		at := smp.Time
		if at.IsZero() {
			at = time.Now()
		}
		rows[i] = []any{sessionID, int64(smp.Seq), smp.Face, smp.Point.X, smp.Point.Y, at}
	}

	_, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{"gaze_samples"},
		[]string{"session_id", "frame_seq", "face", "x", "y", "captured_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// CountSamples returns the number of samples stored for a session.
func (s *Store) CountSamples(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM gaze_samples WHERE session_id = $1", sessionID).Scan(&n)
	return n, err
}

// Reset drops all tables.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS gaze_samples CASCADE;
		DROP TABLE IF EXISTS gaze_sessions CASCADE;
	`)
	return err
}
