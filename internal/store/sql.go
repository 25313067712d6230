package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unclebandit/newsflow/internal/db"
)

// SQLBackend keeps every collection as one row of newsflow_collections. It
// is a document table, not a relational model: body holds the same JSON
// array the file backend would write.
type SQLBackend struct {
	DB      *sql.DB
	dialect string
}

type sqlQueries struct {
	create, read, readForUpdate, upsert string
}

var dialects = map[string]sqlQueries{
	db.DriverPostgres: {
		create: `CREATE TABLE IF NOT EXISTS newsflow_collections (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		read:          `SELECT body FROM newsflow_collections WHERE name = $1`,
		readForUpdate: `SELECT body FROM newsflow_collections WHERE name = $1 FOR UPDATE`,
		upsert: `INSERT INTO newsflow_collections (name, body, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
	},
	db.DriverSQLite: {
		create: `CREATE TABLE IF NOT EXISTS newsflow_collections (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		read:          `SELECT body FROM newsflow_collections WHERE name = ?`,
		readForUpdate: `SELECT body FROM newsflow_collections WHERE name = ?`,
		upsert: `INSERT INTO newsflow_collections (name, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
	},
}

// NewSQLBackend creates the collections table if needed. driver is one of
// db.DriverPostgres or db.DriverSQLite.
func NewSQLBackend(ctx context.Context, conn *sql.DB, driver string) (*SQLBackend, error) {
	q, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}
	if _, err := conn.ExecContext(ctx, q.create); err != nil {
		return nil, fmt.Errorf("create newsflow_collections: %w", err)
	}
	return &SQLBackend{DB: conn, dialect: driver}, nil
}

func (s *SQLBackend) queries() sqlQueries { return dialects[s.dialect] }

func (s *SQLBackend) Read(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, s.queries().read, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return body, nil
}

func (s *SQLBackend) Write(ctx context.Context, key string, data []byte) error {
	if _, err := s.DB.ExecContext(ctx, s.queries().upsert, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Update runs read, fn and write in one transaction. On postgres the row is
// locked with FOR UPDATE; sqlite serializes writers on its own.
func (s *SQLBackend) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	var current []byte
	err = tx.QueryRowContext(ctx, s.queries().readForUpdate, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: read: %w", key, err)
	}

	next, err := fn(current)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, s.queries().upsert, key, string(next)); err != nil {
		return fmt.Errorf("update %s: write: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s: commit: %w", key, err)
	}
	return nil
}

func (s *SQLBackend) Close() error { return s.DB.Close() }
