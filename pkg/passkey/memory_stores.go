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
	"time"
)

// challengeKey scopes a challenge to (identifier, rpId, userId).
type challengeKey struct {
	identifier string
	rpID       string
	userID     string
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu         sync.RWMutex
	challenges map[challengeKey]Challenge
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[challengeKey]Challenge),
	}
}

// Create stores a challenge, replacing any live one for the same scope.
// The map write under the lock makes replacement atomic.
func (s *MemoryChallengeStore) Create(ctx context.Context, challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{challenge.Identifier, challenge.RPID, challenge.UserID}
	s.challenges[key] = challenge
	return nil
}

// Get retrieves the live challenge for the scope. Expired rows behave as
// absent.
func (s *MemoryChallengeStore) Get(ctx context.Context, identifier, rpID, userID string) (Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[challengeKey{identifier, rpID, userID}]
	if !ok || challenge.Expired(time.Now()) {
		return Challenge{}, ErrChallengeNotFound
	}
	return challenge, nil
}

// Delete removes the challenge for the scope. Idempotent.
func (s *MemoryChallengeStore) Delete(ctx context.Context, identifier, rpID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, challengeKey{identifier, rpID, userID})
	return nil
}

// DeleteExpired removes challenges past their TTL.
func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, key)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of challenges in the store, including expired
// rows not yet swept.
func (s *MemoryChallengeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.challenges)
}

// credentialKey scopes a credential to (rpId, credentialId).
type credentialKey struct {
	rpID         string
	credentialID string
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	byKey map[credentialKey]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byKey: make(map[credentialKey]*Credential),
	}
}

// GetByIdentifier retrieves all credentials owned by the identifier within
// the relying party.
func (s *MemoryCredentialStore) GetByIdentifier(ctx context.Context, rpID, identifier, userID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Credential, 0)
	for key, cred := range s.byKey {
		if key.rpID != rpID || cred.Identifier != identifier {
			continue
		}
		if userID != "" && cred.UserID != userID {
			continue
		}
		clone := *cred
		result = append(result, &clone)
	}
	return result, nil
}

// Upsert inserts the credential or updates the mutable fields of an
// existing row with the same external credential id.
func (s *MemoryCredentialStore) Upsert(ctx context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{credential.RPID, credential.CredentialID}
	if existing, ok := s.byKey[key]; ok {
		existing.SignCount = credential.SignCount
		existing.Transports = credential.Transports
		existing.Extensions = credential.Extensions
		existing.LastUsedAt = credential.LastUsedAt
		return nil
	}

	clone := *credential
	s.byKey[key] = &clone
	return nil
}

// GetByCredentialID retrieves a credential by its external id.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, rpID, credentialID string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byKey[credentialKey{rpID, credentialID}]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	clone := *cred
	return &clone, nil
}

// UpdateCounter persists a strictly greater signature counter. The check
// and the write happen under one lock so a concurrent replay cannot slip
// between them.
func (s *MemoryCredentialStore) UpdateCounter(ctx context.Context, rpID, credentialID string, signCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byKey[credentialKey{rpID, credentialID}]
	if !ok {
		return ErrCredentialNotFound
	}
	if signCount <= cred.SignCount {
		return ErrReplayDetected
	}

	cred.SignCount = signCount
	cred.LastUsedAt = usedAt
	return nil
}

// Remove deletes a credential, scoped by the owning identifier.
func (s *MemoryCredentialStore) Remove(ctx context.Context, rpID, identifier, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{rpID, credentialID}
	cred, ok := s.byKey[key]
	if !ok || cred.Identifier != identifier {
		return ErrCredentialNotFound
	}

	delete(s.byKey, key)
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

var _ ChallengeStore = (*MemoryChallengeStore)(nil)
var _ CredentialStore = (*MemoryCredentialStore)(nil)
