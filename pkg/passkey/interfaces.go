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

package passkey

import (
	"context"
	"time"
)

// ChallengeStore persists single-use, TTL-bound challenges keyed by
// (identifier, rpId, userId). Ceremony components hold only request-scoped
// references; challenge rows are exclusively owned by the store.
type ChallengeStore interface {
	// Create stores a challenge, replacing any live challenge for the
	// same (identifier, rpId, userId) scope. The replacement must be
	// atomic at the storage layer so concurrent calls for one scope
	// cannot leave a stale row behind.
	Create(ctx context.Context, challenge Challenge) error

	// Get returns the live challenge for the scope. A row past its
	// ExpiresAt behaves as absent. Returns ErrChallengeNotFound when no
	// live challenge exists.
	Get(ctx context.Context, identifier, rpID, userID string) (Challenge, error)

	// Delete removes the challenge for the scope. Idempotent; invoked
	// unconditionally after every verification attempt.
	Delete(ctx context.Context, identifier, rpID, userID string) error

	// DeleteExpired reclaims rows past their TTL. Correctness never
	// depends on this sweep; it only bounds storage growth.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CredentialStore persists per-identifier WebAuthn credentials scoped to a
// relying party.
type CredentialStore interface {
	// GetByIdentifier returns all credentials owned by the identifier
	// within the relying party, or an empty slice when none exist.
	GetByIdentifier(ctx context.Context, rpID, identifier, userID string) ([]*Credential, error)

	// Upsert inserts the credential, or updates sign count, transports,
	// extensions, and last-used time when the external credential id
	// already exists in scope.
	Upsert(ctx context.Context, credential *Credential) error

	// GetByCredentialID returns the credential with the given external
	// id within the relying party. Returns ErrCredentialNotFound when
	// absent.
	GetByCredentialID(ctx context.Context, rpID, credentialID string) (*Credential, error)

	// UpdateCounter persists a new signature counter. Monotonicity is
	// re-validated atomically with the write: a value not strictly
	// greater than the stored counter fails with ErrReplayDetected and
	// leaves the row unchanged.
	UpdateCounter(ctx context.Context, rpID, credentialID string, signCount uint32, usedAt time.Time) error

	// Remove deletes the credential, additionally scoped by the owning
	// identifier so one user cannot remove another's authenticator.
	Remove(ctx context.Context, rpID, identifier, credentialID string) error
}
