// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/lobbyd/internal/persistence/sqlite"
)

// schema is applied in order; the index of each step is its user_version.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		map TEXT NOT NULL,
		mode TEXT NOT NULL,
		members INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_ended ON matches(ended_at);`,
	`CREATE TABLE IF NOT EXISTS rotation_cursors (
		rotation_key TEXT PRIMARY KEY,
		cursor INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);`,
}

// SQLiteStore persists history in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlite.Migrate(ctx, db, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) RecordMatch(ctx context.Context, m Match) (Match, error) {
	query := `
	INSERT INTO matches (session_id, map, mode, members, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		m.Session, m.Map, m.Mode, m.Members, formatTime(m.Started), formatTime(m.Ended))
	if err != nil {
		return Match{}, fmt.Errorf("insert match: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return Match{}, fmt.Errorf("match id: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
	SELECT id, session_id, map, mode, members, started_at, ended_at
	FROM matches
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var started, ended string
		if err := rows.Scan(&m.ID, &m.Session, &m.Map, &m.Mode, &m.Members, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if m.Ended, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveCursor(ctx context.Context, key string, cursor int) error {
	query := `
	INSERT INTO rotation_cursors (rotation_key, cursor, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(rotation_key) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, cursor, formatTime(time.Now()))
	return err
}

func (s *SQLiteStore) LoadCursor(ctx context.Context, key string) (int, bool, error) {
	var cursor int
	err := s.db.QueryRowContext(ctx, `SELECT cursor FROM rotation_cursors WHERE rotation_key = ?`, key).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return cursor, true, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
