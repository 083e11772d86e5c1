// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history persists finished matches and the rotation cursor so a
// restarted daemon continues the rotation where it stopped.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/lobbyd/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history: store closed")

// Match is one finished match.
type Match struct {
	ID      int64     `json:"id"`
	Session string    `json:"session"`
	Map     string    `json:"map"`
	Mode    string    `json:"mode"`
	Members int       `json:"members"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
}

// Duration is the played time of m.
func (m Match) Duration() time.Duration { return m.Ended.Sub(m.Started) }

// Store is the persistence contract shared by all backends.
type Store interface {
	// RecordMatch appends m and returns it with its assigned ID.
	RecordMatch(ctx context.Context, m Match) (Match, error)
	// RecentMatches returns up to limit matches, newest first.
	RecentMatches(ctx context.Context, limit int) ([]Match, error)
	SaveCursor(ctx context.Context, key string, cursor int) error
	// LoadCursor reports false when no cursor was stored for key.
	LoadCursor(ctx context.Context, key string) (int, bool, error)
	Backend() string
	Close() error
}

// Open creates the Store selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	case "badger":
		return OpenBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
