// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package sqlite implements the passkey storage interfaces over a single
// SQLite file using the CGO-free modernc.org/sqlite driver.
//
// The single-active-challenge invariant is enforced with a composite
// primary key plus upsert, and signature counter monotonicity is
// re-validated inside the UPDATE statement itself, so both hold under
// concurrent requests without any process-wide locking.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS passkey_challenges (
	identifier TEXT NOT NULL,
	rp_id      TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	challenge  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (identifier, rp_id, user_id)
);

CREATE TABLE IF NOT EXISTS passkey_credentials (
	credential_id TEXT NOT NULL,
	rp_id         TEXT NOT NULL,
	identifier    TEXT NOT NULL,
	user_id       TEXT NOT NULL DEFAULT '',
	public_key    BLOB NOT NULL,
	sign_count    INTEGER NOT NULL DEFAULT 0,
	transports    TEXT NOT NULL DEFAULT '[]',
	extensions    TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL,
	last_used_at  INTEGER NOT NULL,
	PRIMARY KEY (credential_id, rp_id)
);

CREATE INDEX IF NOT EXISTS idx_passkey_credentials_owner
	ON passkey_credentials (rp_id, identifier);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements passkey persistence over SQLite. A single file backs
// both challenges and credentials so every ceremony step shares the same
// transaction and visibility boundaries.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a passkey SQLite store and applies the schema. Schema setup
// lives here so callers never coordinate migrations independently.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.applySchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the raw database handle for callers that share the file.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

func (s *Store) applySchema() error {
	_, err := s.sqlDB.ExecContext(context.Background(), schema)
	return err
}
