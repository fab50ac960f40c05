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

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Create stores a challenge, replacing any live one for the same
// (identifier, rp_id, user_id) scope. The upsert on the composite primary
// key makes the replacement atomic: two concurrent calls for one scope
// serialize at the storage layer and the row always matches the most
// recently issued options.
func (s *Store) Create(ctx context.Context, challenge passkey.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(challenge.Identifier) == "" {
		return fmt.Errorf("identifier is required")
	}
	if strings.TrimSpace(challenge.RPID) == "" {
		return fmt.Errorf("rp id is required")
	}
	if strings.TrimSpace(challenge.Value) == "" {
		return fmt.Errorf("challenge value is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_challenges (identifier, rp_id, user_id, challenge, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(identifier, rp_id, user_id) DO UPDATE SET
	challenge = excluded.challenge,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at
`,
		challenge.Identifier,
		challenge.RPID,
		challenge.UserID,
		challenge.Value,
		toMillis(challenge.CreatedAt),
		toMillis(challenge.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// Get fetches the live challenge for the scope. Expired rows behave as
// absent without requiring the sweep to have run.
func (s *Store) Get(ctx context.Context, identifier, rpID, userID string) (passkey.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return passkey.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return passkey.Challenge{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT identifier, rp_id, user_id, challenge, created_at, expires_at
FROM passkey_challenges
WHERE identifier = ? AND rp_id = ? AND user_id = ? AND expires_at > ?
`,
		identifier, rpID, userID, toMillis(time.Now()),
	)

	var challenge passkey.Challenge
	var createdAt, expiresAt int64
	err := row.Scan(
		&challenge.Identifier,
		&challenge.RPID,
		&challenge.UserID,
		&challenge.Value,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return passkey.Challenge{}, passkey.ErrChallengeNotFound
		}
		return passkey.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}

	challenge.CreatedAt = fromMillis(createdAt)
	challenge.ExpiresAt = fromMillis(expiresAt)
	return challenge, nil
}

// Delete removes the challenge for the scope. Idempotent.
func (s *Store) Delete(ctx context.Context, identifier, rpID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM passkey_challenges
WHERE identifier = ? AND rp_id = ? AND user_id = ?
`,
		identifier, rpID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// DeleteExpired reclaims challenge rows past their TTL.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM passkey_challenges WHERE expires_at <= ?
`,
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return removed, nil
}

var _ passkey.ChallengeStore = (*Store)(nil)
