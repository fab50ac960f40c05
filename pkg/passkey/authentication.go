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
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// AuthenticationCeremony orchestrates challenge issuance, assertion
// verification, counter update, and replay detection.
type AuthenticationCeremony struct {
	resolver    *Resolver
	verifier    *Verifier
	challenges  ChallengeStore
	credentials CredentialStore
	logger      *slog.Logger
}

// NewAuthenticationCeremony creates an authentication ceremony with the
// provided dependencies.
func NewAuthenticationCeremony(params CeremonyParams) (*AuthenticationCeremony, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &AuthenticationCeremony{
		resolver:    params.Resolver,
		verifier:    params.Verifier,
		challenges:  params.ChallengeStore,
		credentials: params.CredentialStore,
		logger:      params.Logger,
	}, nil
}

// GetOptions resolves the relying party and returns assertion options with
// an allow-list of the identifier's registered credentials. A non-empty
// challenge lets flows that pre-generate the value supply their own; it
// must be base64url and decode to at least MinChallengeLength bytes.
func (c *AuthenticationCeremony) GetOptions(ctx context.Context, identifier, origin, challenge, userID string) (*protocol.CredentialAssertion, error) {
	rp, err := c.resolver.Resolve(origin)
	if err != nil {
		return nil, err
	}

	existing, err := c.credentials.GetByIdentifier(ctx, rp.ID, identifier, userID)
	if err != nil {
		return nil, WrapError("load credentials", err)
	}
	if len(existing) == 0 {
		return nil, ErrUserNotFound
	}

	user, err := newCeremonyUser(identifier, userID, existing)
	if err != nil {
		return nil, err
	}

	options, value, err := c.verifier.BeginLogin(rp, user, challenge)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := c.challenges.Create(ctx, Challenge{
		Identifier: identifier,
		RPID:       rp.ID,
		UserID:     userID,
		Value:      value,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ChallengeTTL),
	}); err != nil {
		return nil, WrapError("store challenge", err)
	}

	c.logger.Debug("authentication options issued",
		"identifier", identifier,
		"rp_id", rp.ID)

	return options, nil
}

// Verify checks an assertion response against the stored challenge and, on
// success, persists the increased signature counter. Monotonicity is
// re-validated atomically at write time: a concurrent authentication
// replaying a captured assertion is exactly what the counter exists to
// catch, so the read-side check alone is never trusted. The stored
// challenge is deleted on every path out of this method.
func (c *AuthenticationCeremony) Verify(ctx context.Context, identifier, origin string, response *protocol.ParsedCredentialAssertionData, userID string) (bool, error) {
	rp, err := c.resolver.Resolve(origin)
	if err != nil {
		return false, err
	}

	defer c.discardChallenge(ctx, identifier, rp.ID, userID)

	challenge, err := c.challenges.Get(ctx, identifier, rp.ID, userID)
	if err != nil {
		return false, err
	}

	// A response minted against a superseded challenge is treated the
	// same as one whose challenge was already consumed.
	if response.Response.CollectedClientData.Challenge != challenge.Value {
		return false, NewError("verify authentication", ErrChallengeNotFound)
	}

	existing, err := c.credentials.GetByIdentifier(ctx, rp.ID, identifier, userID)
	if err != nil {
		return false, WrapError("load credentials", err)
	}

	responseID := base64.RawURLEncoding.EncodeToString(response.RawID)
	var matched *Credential
	for _, cred := range existing {
		if cred.CredentialID == responseID {
			matched = cred
			break
		}
	}
	if matched == nil {
		return false, ErrAuthenticatorNotRegistered
	}

	user, err := newCeremonyUser(identifier, userID, existing)
	if err != nil {
		return false, err
	}

	verified, err := c.verifier.FinishLogin(rp, user, matched, challenge.Value, challenge.ExpiresAt, response)
	if err != nil {
		if IsReplayDetected(err) {
			c.logger.Warn("assertion rejected: signature counter did not increase",
				"identifier", identifier,
				"rp_id", rp.ID,
				"credential_id", matched.CredentialID)
		} else {
			c.logger.Debug("authentication verification failed",
				"identifier", identifier,
				"rp_id", rp.ID,
				"error", err)
		}
		return false, nil
	}

	err = c.credentials.UpdateCounter(ctx, rp.ID, matched.CredentialID, verified.Authenticator.SignCount, time.Now().UTC())
	if err != nil {
		if IsReplayDetected(err) {
			// A concurrent authentication won the write race with an
			// equal or higher counter. Treat this attempt as replayed.
			c.logger.Warn("counter write lost to concurrent authentication",
				"identifier", identifier,
				"rp_id", rp.ID,
				"credential_id", matched.CredentialID)
			return false, nil
		}
		return false, WrapError("update counter", err)
	}

	c.logger.Info("authentication verified",
		"identifier", identifier,
		"rp_id", rp.ID,
		"credential_id", matched.CredentialID)

	return true, nil
}

func (c *AuthenticationCeremony) discardChallenge(ctx context.Context, identifier, rpID, userID string) {
	if err := c.challenges.Delete(ctx, identifier, rpID, userID); err != nil {
		c.logger.Error("failed to delete challenge",
			"identifier", identifier,
			"rp_id", rpID,
			"error", err)
	}
}
