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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// GetByIdentifier returns all credentials owned by the identifier within
// the relying party.
func (s *Store) GetByIdentifier(ctx context.Context, rpID, identifier, userID string) ([]*passkey.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, rp_id, identifier, user_id, public_key, sign_count, transports, extensions, created_at, last_used_at
FROM passkey_credentials
WHERE rp_id = ? AND identifier = ? AND (? = '' OR user_id = ?)
ORDER BY created_at
`,
		rpID, identifier, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	credentials := make([]*passkey.Credential, 0)
	for rows.Next() {
		credential, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

// Upsert inserts the credential or updates the mutable fields of an
// existing row with the same external credential id.
func (s *Store) Upsert(ctx context.Context, credential *passkey.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if credential == nil {
		return fmt.Errorf("credential is required")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.Identifier) == "" {
		return fmt.Errorf("identifier is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	transports, err := encodeTransports(credential.Transports)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	extensions, err := encodeExtensions(credential.Extensions)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_credentials (credential_id, rp_id, identifier, user_id, public_key, sign_count, transports, extensions, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(credential_id, rp_id) DO UPDATE SET
	sign_count = excluded.sign_count,
	transports = excluded.transports,
	extensions = excluded.extensions,
	last_used_at = excluded.last_used_at
`,
		credential.CredentialID,
		credential.RPID,
		credential.Identifier,
		credential.UserID,
		credential.PublicKey,
		credential.SignCount,
		transports,
		extensions,
		toMillis(credential.CreatedAt),
		toMillis(credential.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetByCredentialID fetches a credential by its external id.
func (s *Store) GetByCredentialID(ctx context.Context, rpID, credentialID string) (*passkey.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return nil, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, rp_id, identifier, user_id, public_key, sign_count, transports, extensions, created_at, last_used_at
FROM passkey_credentials
WHERE rp_id = ? AND credential_id = ?
`,
		rpID, credentialID,
	)

	credential, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, passkey.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// UpdateCounter persists a strictly greater signature counter. The
// monotonicity guard lives in the WHERE clause so the check and the write
// are one atomic statement; a replayed or concurrent stale counter affects
// zero rows and the stored value is left unchanged.
func (s *Store) UpdateCounter(ctx context.Context, rpID, credentialID string, signCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE passkey_credentials
SET sign_count = ?, last_used_at = ?
WHERE rp_id = ? AND credential_id = ? AND sign_count < ?
`,
		signCount, toMillis(usedAt), rpID, credentialID, signCount,
	)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a missing row from a counter that failed to advance.
	if _, err := s.GetByCredentialID(ctx, rpID, credentialID); err != nil {
		return err
	}
	return passkey.ErrReplayDetected
}

// Remove deletes a credential, scoped by the owning identifier.
func (s *Store) Remove(ctx context.Context, rpID, identifier, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM passkey_credentials
WHERE rp_id = ? AND credential_id = ? AND identifier = ?
`,
		rpID, credentialID, identifier,
	)
	if err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

type scanFunc func(dest ...any) error

func scanCredential(scan scanFunc) (*passkey.Credential, error) {
	var credential passkey.Credential
	var transports, extensions string
	var createdAt, lastUsedAt int64
	if err := scan(
		&credential.CredentialID,
		&credential.RPID,
		&credential.Identifier,
		&credential.UserID,
		&credential.PublicKey,
		&credential.SignCount,
		&transports,
		&extensions,
		&createdAt,
		&lastUsedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(transports), &credential.Transports); err != nil {
		return nil, fmt.Errorf("decode transports: %w", err)
	}
	if err := json.Unmarshal([]byte(extensions), &credential.Extensions); err != nil {
		return nil, fmt.Errorf("decode extensions: %w", err)
	}
	credential.CreatedAt = fromMillis(createdAt)
	credential.LastUsedAt = fromMillis(lastUsedAt)
	return &credential, nil
}

func encodeTransports(transports []protocol.AuthenticatorTransport) (string, error) {
	if transports == nil {
		transports = []protocol.AuthenticatorTransport{}
	}
	encoded, err := json.Marshal(transports)
	if err != nil {
		return "", fmt.Errorf("encode transports: %w", err)
	}
	return string(encoded), nil
}

func encodeExtensions(extensions map[string]string) (string, error) {
	if extensions == nil {
		extensions = map[string]string{}
	}
	encoded, err := json.Marshal(extensions)
	if err != nil {
		return "", fmt.Errorf("encode extensions: %w", err)
	}
	return string(encoded), nil
}

var _ passkey.CredentialStore = (*Store)(nil)
