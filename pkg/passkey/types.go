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
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// ChallengeTTL is the lifetime of an issued challenge. A challenge older
// than this behaves as absent regardless of physical deletion.
const ChallengeTTL = 5 * time.Minute

// MinChallengeLength is the minimum decoded length in bytes accepted for
// caller-supplied challenge values.
const MinChallengeLength = 16

// Challenge is a single-use, TTL-bound value issued at options-generation
// time. At most one live challenge exists per (identifier, rpId, userId)
// scope; issuing a new one invalidates any prior one.
type Challenge struct {
	// Identifier is the user-facing handle the challenge was issued for.
	Identifier string `json:"identifier"`

	// RPID is the relying party the challenge is bound to.
	RPID string `json:"rp_id"`

	// UserID is an optional caller-scoped user id.
	UserID string `json:"user_id,omitempty"`

	// Value is the base64url-encoded random challenge.
	Value string `json:"challenge"`

	// CreatedAt is when the challenge was issued.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the challenge stops being valid.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its TTL at the given time.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Credential is a WebAuthn credential stored by the relying party. Only the
// public key and usage counter are ever held server-side.
type Credential struct {
	// CredentialID is the base64url-encoded external credential id
	// assigned by the authenticator. Globally unique per authenticator.
	CredentialID string `json:"credential_id"`

	// Identifier is the user-facing handle that owns the credential.
	Identifier string `json:"identifier"`

	// UserID is an optional caller-scoped user id.
	UserID string `json:"user_id,omitempty"`

	// RPID is the relying party the credential is bound to.
	RPID string `json:"rp_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// SignCount is the signature counter for clone detection. A stored
	// value is only ever replaced by a strictly greater one.
	SignCount uint32 `json:"sign_count"`

	// Transports lists the transports supported by the authenticator.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`

	// Extensions holds opaque platform metadata keyed by name. The core
	// credential shape stays narrow; extension values are never
	// interpreted by the ceremony layer.
	Extensions map[string]string `json:"extensions,omitempty"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed a ceremony.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// RawID returns the decoded external credential id.
func (c *Credential) RawID() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(c.CredentialID)
}

// toWebAuthn converts the stored credential into the go-webauthn
// representation used during verification.
func (c *Credential) toWebAuthn() (webauthn.Credential, error) {
	id, err := c.RawID()
	if err != nil {
		return webauthn.Credential{}, err
	}
	return webauthn.Credential{
		ID:        id,
		PublicKey: c.PublicKey,
		Transport: c.Transports,
		Flags: webauthn.CredentialFlags{
			UserPresent: true,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: c.SignCount,
		},
	}, nil
}

// newCredential builds a stored credential from a freshly verified
// go-webauthn credential.
func newCredential(identifier, userID, rpID string, wc *webauthn.Credential, now time.Time) *Credential {
	return &Credential{
		CredentialID: base64.RawURLEncoding.EncodeToString(wc.ID),
		Identifier:   identifier,
		UserID:       userID,
		RPID:         rpID,
		PublicKey:    wc.PublicKey,
		SignCount:    wc.Authenticator.SignCount,
		Transports:   wc.Transport,
		CreatedAt:    now,
		LastUsedAt:   now,
	}
}

// userHandleNamespace scopes derived WebAuthn user handles to this module.
var userHandleNamespace = uuid.MustParse("3f1b8c5e-7a24-4c47-9d0b-2f6e1a9c8d43")

// UserHandle derives a stable WebAuthn user handle for an identifier. When
// the caller supplies an explicit userId it takes precedence so external
// systems keep control over the handle.
func UserHandle(identifier, userID string) []byte {
	if userID != "" {
		return []byte(userID)
	}
	handle := uuid.NewSHA1(userHandleNamespace, []byte(identifier))
	return handle[:]
}

// ceremonyUser adapts a request-scoped (identifier, credentials) pair to the
// webauthn.User interface. Instances never outlive a single request.
type ceremonyUser struct {
	identifier  string
	handle      []byte
	credentials []webauthn.Credential
}

func newCeremonyUser(identifier, userID string, credentials []*Credential) (*ceremonyUser, error) {
	converted := make([]webauthn.Credential, 0, len(credentials))
	for _, cred := range credentials {
		wc, err := cred.toWebAuthn()
		if err != nil {
			return nil, WrapError("decode credential id", err)
		}
		converted = append(converted, wc)
	}
	return &ceremonyUser{
		identifier:  identifier,
		handle:      UserHandle(identifier, userID),
		credentials: converted,
	}, nil
}

// WebAuthnID returns the user handle.
func (u *ceremonyUser) WebAuthnID() []byte { return u.handle }

// WebAuthnName returns the user-facing identifier.
func (u *ceremonyUser) WebAuthnName() string { return u.identifier }

// WebAuthnDisplayName returns the user-facing identifier.
func (u *ceremonyUser) WebAuthnDisplayName() string { return u.identifier }

// WebAuthnCredentials returns the user's registered credentials.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
