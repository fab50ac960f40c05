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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeExpired(t *testing.T) {
	now := time.Now().UTC()
	challenge := Challenge{ExpiresAt: now.Add(ChallengeTTL)}

	assert.False(t, challenge.Expired(now))
	assert.False(t, challenge.Expired(now.Add(ChallengeTTL-time.Second)))
	assert.True(t, challenge.Expired(now.Add(ChallengeTTL)), "expiry instant itself is expired")
	assert.True(t, challenge.Expired(now.Add(ChallengeTTL+time.Second)))
}

func TestUserHandle(t *testing.T) {
	// Explicit userId takes precedence
	assert.Equal(t, []byte("user-42"), UserHandle("alice@example.com", "user-42"))

	// Derived handles are stable and identifier-scoped
	a := UserHandle("alice@example.com", "")
	b := UserHandle("alice@example.com", "")
	c := UserHandle("bob@example.com", "")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestCredentialRawID(t *testing.T) {
	cred := &Credential{CredentialID: "AQIDBA"}
	raw, err := cred.RawID()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, raw)

	cred = &Credential{CredentialID: "not!base64url"}
	_, err = cred.RawID()
	assert.Error(t, err)
}

func TestCeremonyUser(t *testing.T) {
	creds := []*Credential{
		{
			CredentialID: "AQIDBA",
			Identifier:   "alice@example.com",
			RPID:         "example.com",
			PublicKey:    []byte{0xAA},
			SignCount:    3,
		},
	}

	user, err := newCeremonyUser("alice@example.com", "", creds)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.WebAuthnName())
	assert.Equal(t, "alice@example.com", user.WebAuthnDisplayName())
	assert.Equal(t, UserHandle("alice@example.com", ""), user.WebAuthnID())

	waCreds := user.WebAuthnCredentials()
	require.Len(t, waCreds, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, waCreds[0].ID)
	assert.Equal(t, uint32(3), waCreds[0].Authenticator.SignCount)

	// A malformed stored credential id surfaces as an error
	_, err = newCeremonyUser("alice@example.com", "", []*Credential{
		{CredentialID: "not!base64url"},
	})
	assert.Error(t, err)
}
