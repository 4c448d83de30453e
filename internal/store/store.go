// Package store is the persisted backend of the transcript collection:
// one SQLite file holding transcript metadata, segment rows, and the FTS5
// index over segment text. It is the sole writer of all three and keeps
// the index in lockstep with segment lifecycle inside a single transaction
// per transcript write.
package store

import (
	"context"
	"database/sql"
	"errors"
	_ "embed"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type DB struct {
	sql *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the store file at path and verifies the
// connection. The connection pool is capped at one writer: the execution
// model is single-process, single-writer, and SQLite enforces the rest.
func Open(ctx context.Context, path string, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping store %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("store opened")
	return &DB{sql: conn, log: log}, nil
}

// InitSchema applies the baseline schema on a fresh store file. The
// transcripts table doubles as the "already initialized" marker.
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.sql.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'transcripts')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh store detected, applying schema")
	if _, err := db.sql.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck verifies the store responds within a short deadline.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.sql.PingContext(ctx)
}

// Stats reports connection pool statistics for the metrics collector.
func (db *DB) Stats() sql.DBStats {
	return db.sql.Stats()
}

func (db *DB) Close() error {
	db.log.Info().Msg("closing store")
	return db.sql.Close()
}
