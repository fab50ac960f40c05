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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryChallengeStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChallengeStore()
	now := time.Now().UTC()

	challenge := Challenge{
		Identifier: "alice@example.com",
		RPID:       "example.com",
		Value:      "dGVzdC1jaGFsbGVuZ2UtdmFsdWU",
		CreatedAt:  now,
		ExpiresAt:  now.Add(ChallengeTTL),
	}

	// Create and get
	require.NoError(t, store.Create(ctx, challenge))
	got, err := store.Get(ctx, "alice@example.com", "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, challenge.Value, got.Value)
	assert.Equal(t, 1, store.Count())

	// A second create for the same scope replaces the first
	replacement := challenge
	replacement.Value = "c2Vjb25kLWNoYWxsZW5nZS12YWx1ZQ"
	require.NoError(t, store.Create(ctx, replacement))
	got, err = store.Get(ctx, "alice@example.com", "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, replacement.Value, got.Value)
	assert.Equal(t, 1, store.Count(), "replacement must not add a row")

	// Different userId is a different scope
	scoped := challenge
	scoped.UserID = "user-1"
	require.NoError(t, store.Create(ctx, scoped))
	assert.Equal(t, 2, store.Count())

	// Missing scope
	_, err = store.Get(ctx, "bob@example.com", "example.com", "")
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	// Delete is idempotent
	require.NoError(t, store.Delete(ctx, "alice@example.com", "example.com", ""))
	require.NoError(t, store.Delete(ctx, "alice@example.com", "example.com", ""))
	_, err = store.Get(ctx, "alice@example.com", "example.com", "")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestMemoryChallengeStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryChallengeStore()
	now := time.Now().UTC()

	expired := Challenge{
		Identifier: "alice@example.com",
		RPID:       "example.com",
		Value:      "ZXhwaXJlZC1jaGFsbGVuZ2U",
		CreatedAt:  now.Add(-2 * ChallengeTTL),
		ExpiresAt:  now.Add(-ChallengeTTL),
	}
	require.NoError(t, store.Create(ctx, expired))

	// Expired rows behave as absent even before any sweep runs.
	_, err := store.Get(ctx, "alice@example.com", "example.com", "")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.Equal(t, 1, store.Count())

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 0, store.Count())
}

func TestMemoryCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	now := time.Now().UTC()

	cred := &Credential{
		CredentialID: "Y3JlZC1pZC0x",
		Identifier:   "alice@example.com",
		RPID:         "example.com",
		PublicKey:    []byte{0x01, 0x02, 0x03},
		SignCount:    0,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	require.NoError(t, store.Upsert(ctx, cred))
	assert.Equal(t, 1, store.Count())

	// Upserting the same credential id must not duplicate the row
	require.NoError(t, store.Upsert(ctx, cred))
	assert.Equal(t, 1, store.Count())

	// Lookup by identifier
	creds, err := store.GetByIdentifier(ctx, "example.com", "alice@example.com", "")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, cred.CredentialID, creds[0].CredentialID)

	// Wrong rpId sees nothing
	creds, err = store.GetByIdentifier(ctx, "example.org", "alice@example.com", "")
	require.NoError(t, err)
	assert.Empty(t, creds)

	// Lookup by credential id
	got, err := store.GetByCredentialID(ctx, "example.com", "Y3JlZC1pZC0x")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Identifier)

	_, err = store.GetByCredentialID(ctx, "example.com", "bWlzc2luZw")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// Returned credentials are clones
	got.SignCount = 999
	fresh, err := store.GetByCredentialID(ctx, "example.com", "Y3JlZC1pZC0x")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), fresh.SignCount)
}

func TestMemoryCredentialStore_UpdateCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	now := time.Now().UTC()

	cred := &Credential{
		CredentialID: "Y3JlZC1pZC0x",
		Identifier:   "alice@example.com",
		RPID:         "example.com",
		PublicKey:    []byte{0x01},
		SignCount:    5,
		CreatedAt:    now,
		LastUsedAt:   now,
	}
	require.NoError(t, store.Upsert(ctx, cred))

	// Strictly greater succeeds
	require.NoError(t, store.UpdateCounter(ctx, "example.com", "Y3JlZC1pZC0x", 6, now))

	// Equal and smaller are replays; stored value stays unchanged
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", "Y3JlZC1pZC0x", 6, now), ErrReplayDetected)
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", "Y3JlZC1pZC0x", 3, now), ErrReplayDetected)

	got, err := store.GetByCredentialID(ctx, "example.com", "Y3JlZC1pZC0x")
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.SignCount)

	// Missing credential
	assert.ErrorIs(t, store.UpdateCounter(ctx, "example.com", "bWlzc2luZw", 7, now), ErrCredentialNotFound)
}

func TestMemoryCredentialStore_UpdateCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	now := time.Now().UTC()

	require.NoError(t, store.Upsert(ctx, &Credential{
		CredentialID: "Y3JlZC1pZC0x",
		Identifier:   "alice@example.com",
		RPID:         "example.com",
		PublicKey:    []byte{0x01},
		SignCount:    0,
		CreatedAt:    now,
		LastUsedAt:   now,
	}))

	// Many goroutines race to write the same counter value. Exactly one
	// may win; the rest must observe a replay.
	const writers = 16
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.UpdateCounter(ctx, "example.com", "Y3JlZC1pZC0x", 1, now)
		}()
	}
	wg.Wait()
	close(results)

	var wins, replays int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case IsReplayDetected(err):
			replays++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, replays)
}

func TestMemoryCredentialStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	now := time.Now().UTC()

	require.NoError(t, store.Upsert(ctx, &Credential{
		CredentialID: "Y3JlZC1pZC0x",
		Identifier:   "alice@example.com",
		RPID:         "example.com",
		PublicKey:    []byte{0x01},
		CreatedAt:    now,
		LastUsedAt:   now,
	}))

	// Removal is scoped by owner; another identifier cannot delete it
	err := store.Remove(ctx, "example.com", "mallory@example.com", "Y3JlZC1pZC0x")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.Equal(t, 1, store.Count())

	require.NoError(t, store.Remove(ctx, "example.com", "alice@example.com", "Y3JlZC1pZC0x"))
	assert.Equal(t, 0, store.Count())

	err = store.Remove(ctx, "example.com", "alice@example.com", "Y3JlZC1pZC0x")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}
