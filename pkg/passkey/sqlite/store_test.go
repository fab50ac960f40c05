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
	"path/filepath"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "passkey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen(t *testing.T) {
	store := newTestStore(t)
	assert.NotNil(t, store.DB())

	_, err := Open("")
	assert.Error(t, err)
}

func TestStore_Challenges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	challenge := passkey.Challenge{
		Identifier: "alice@example.com",
		RPID:       "example.com",
		Value:      "dGVzdC1jaGFsbGVuZ2UtdmFsdWU",
		CreatedAt:  now,
		ExpiresAt:  now.Add(passkey.ChallengeTTL),
	}

	require.NoError(t, store.Create(ctx, challenge))

	got, err := store.Get(ctx, "alice@example.com", "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, challenge.Value, got.Value)
	assert.WithinDuration(t, challenge.ExpiresAt, got.ExpiresAt, time.Millisecond)

	// Upsert replaces the live challenge for the scope
	replacement := challenge
	replacement.Value = "c2Vjb25kLWNoYWxsZW5nZS12YWx1ZQ"
	require.NoError(t, store.Create(ctx, replacement))

	got, err = store.Get(ctx, "alice@example.com", "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, replacement.Value, got.Value)

	// Distinct userId is a distinct scope
	scoped := challenge
	scoped.UserID = "user-1"
	require.NoError(t, store.Create(ctx, scoped))
	got, err = store.Get(ctx, "alice@example.com", "example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.Value, got.Value)

	// Missing scope
	_, err = store.Get(ctx, "bob@example.com", "example.com", "")
	assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)

	// Delete is idempotent
	require.NoError(t, store.Delete(ctx, "alice@example.com", "example.com", ""))
	require.NoError(t, store.Delete(ctx, "alice@example.com", "example.com", ""))
	_, err = store.Get(ctx, "alice@example.com", "example.com", "")
	assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)
}

func TestStore_ChallengeValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	tests := []struct {
		name      string
		challenge passkey.Challenge
	}{
		{"missing identifier", passkey.Challenge{RPID: "example.com", Value: "dg", CreatedAt: now, ExpiresAt: now}},
		{"missing rp id", passkey.Challenge{Identifier: "alice@example.com", Value: "dg", CreatedAt: now, ExpiresAt: now}},
		{"missing value", passkey.Challenge{Identifier: "alice@example.com", RPID: "example.com", CreatedAt: now, ExpiresAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Create(ctx, tt.challenge))
		})
	}
}

func TestStore_ChallengeExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	expired := passkey.Challenge{
		Identifier: "alice@example.com",
		RPID:       "example.com",
		Value:      "ZXhwaXJlZC1jaGFsbGVuZ2U",
		CreatedAt:  now.Add(-2 * passkey.ChallengeTTL),
		ExpiresAt:  now.Add(-passkey.ChallengeTTL),
	}
	require.NoError(t, store.Create(ctx, expired))

	// Expired rows are invisible to reads before any sweep
	_, err := store.Get(ctx, "alice@example.com", "example.com", "")
	assert.ErrorIs(t, err, passkey.ErrChallengeNotFound)

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func testCredential(now time.Time) *passkey.Credential {
	return &passkey.Credential{
		CredentialID: "Y3JlZC1pZC0x",
		Identifier:   "alice@example.com",
		RPID:         "example.com",
		PublicKey:    []byte{0x01, 0x02, 0x03},
		SignCount:    0,
		Transports:   []protocol.AuthenticatorTransport{protocol.USB},
		Extensions:   map[string]string{"wallet_address": "0xabc"},
		CreatedAt:    now,
		LastUsedAt:   now,
	}
}

func TestStore_Credentials(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	cred := testCredential(now)
	require.NoError(t, store.Upsert(ctx, cred))

	// Same credential id does not duplicate the row
	require.NoError(t, store.Upsert(ctx, cred))

	creds, err := store.GetByIdentifier(ctx, "example.com", "alice@example.com", "")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, cred.CredentialID, creds[0].CredentialID)
	assert.Equal(t, cred.PublicKey, creds[0].PublicKey)
	assert.Equal(t, cred.Transports, creds[0].Transports)
	assert.Equal(t, cred.Extensions, creds[0].Extensions)
	assert.WithinDuration(t, now, creds[0].CreatedAt, time.Millisecond)

	// Wrong rpId sees nothing
	creds, err = store.GetByIdentifier(ctx, "example.org", "alice@example.com", "")
	require.NoError(t, err)
	assert.Empty(t, creds)

	got, err := store.GetByCredentialID(ctx, "example.com", "Y3JlZC1pZC0x")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Identifier)

	_, err = store.GetByCredentialID(ctx, "example.com", "bWlzc2luZw")
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func TestStore_CredentialsUserIDFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	first := testCredential(now)
	first.UserID = "user-1"
	require.NoError(t, store.Upsert(ctx, first))

	second := testCredential(now)
	second.CredentialID = "Y3JlZC1pZC0y"
	second.UserID = "user-2"
	require.NoError(t, store.Upsert(ctx, second))

	// Empty userId matches all credentials for the identifier
	creds, err := store.GetByIdentifier(ctx, "example.com", "alice@example.com", "")
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	// Explicit userId narrows the result
	creds, err = store.GetByIdentifier(ctx, "example.com", "alice@example.com", "user-2")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "Y3JlZC1pZC0y", creds[0].CredentialID)
}

func TestStore_UpdateCounter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	cred := testCredential(now)
	cred.SignCount = 5
	require.NoError(t, store.Upsert(ctx, cred))

	// Strictly greater succeeds
	require.NoError(t, store.UpdateCounter(ctx, "example.com", cred.CredentialID, 6, now))

	// Equal and smaller fail atomically in the UPDATE itself
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", cred.CredentialID, 6, now), passkey.ErrReplayDetected)
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", cred.CredentialID, 2, now), passkey.ErrReplayDetected)

	got, err := store.GetByCredentialID(ctx, "example.com", cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.SignCount)

	// A missing row is distinguishable from a stale counter
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", "bWlzc2luZw", 7, now), passkey.ErrCredentialNotFound)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	cred := testCredential(now)
	require.NoError(t, store.Upsert(ctx, cred))

	// Scoped by owning identifier
	err := store.Remove(ctx, "example.com", "mallory@example.com", cred.CredentialID)
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)

	require.NoError(t, store.Remove(ctx, "example.com", "alice@example.com", cred.CredentialID))

	err = store.Remove(ctx, "example.com", "alice@example.com", cred.CredentialID)
	assert.ErrorIs(t, err, passkey.ErrCredentialNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "passkey.db")
	now := time.Now().UTC()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testCredential(now)))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	creds, err := reopened.GetByIdentifier(ctx, "example.com", "alice@example.com", "")
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestStore_NotConfigured(t *testing.T) {
	ctx := context.Background()
	var store *Store

	assert.Error(t, store.Create(ctx, passkey.Challenge{Identifier: "a", RPID: "b", Value: "c"}))
	_, err := store.Get(ctx, "a", "b", "")
	assert.Error(t, err)
	_, err = store.GetByIdentifier(ctx, "b", "a", "")
	assert.Error(t, err)
}
