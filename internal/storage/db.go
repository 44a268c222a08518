package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// EnsureSchema creates the catalog tables if they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courses (
  name        TEXT PRIMARY KEY,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
  doc_id      TEXT PRIMARY KEY,
  course      TEXT NOT NULL REFERENCES courses(name),
  filename    TEXT NOT NULL,
  status      TEXT NOT NULL,
  fail_reason TEXT,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ingest_runs (
  run_id       UUID PRIMARY KEY,
  course       TEXT NOT NULL,
  status       TEXT NOT NULL,
  chunk_count  INT NOT NULL DEFAULT 0,
  vector_count INT NOT NULL DEFAULT 0,
  fail_stage   TEXT,
  fail_reason  TEXT,
  stages       JSONB,
  started_at   TIMESTAMPTZ NOT NULL,
  finished_at  TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure catalog schema: %w", err)
	}
	return nil
}
