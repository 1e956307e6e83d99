package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS summary_runs (
			id TEXT PRIMARY KEY,
			trigger_source TEXT NOT NULL,
			requested_by TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			recent_count INTEGER NOT NULL DEFAULT 0,
			older_count INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			summary_chars INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			started_at_unix INTEGER NOT NULL,
			finished_at_unix INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_summary_runs_started ON summary_runs(started_at_unix DESC);`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
