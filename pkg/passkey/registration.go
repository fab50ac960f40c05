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
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// CeremonyParams contains the dependencies shared by both ceremonies.
type CeremonyParams struct {
	// Resolver maps request origins to relying parties (required).
	Resolver *Resolver

	// Verifier performs cryptographic verification (required).
	Verifier *Verifier

	// ChallengeStore persists single-use challenges (required).
	ChallengeStore ChallengeStore

	// CredentialStore persists credentials (required).
	CredentialStore CredentialStore

	// Logger receives internal failure detail that is never returned to
	// clients. Defaults to slog.Default().
	Logger *slog.Logger
}

func (p *CeremonyParams) validate() error {
	if p.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if p.Verifier == nil {
		return fmt.Errorf("verifier is required")
	}
	if p.ChallengeStore == nil {
		return fmt.Errorf("challenge store is required")
	}
	if p.CredentialStore == nil {
		return fmt.Errorf("credential store is required")
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return nil
}

// RegistrationCeremony orchestrates challenge issuance, attestation
// verification, and first-time credential persistence. Instances are
// stateless between requests; every request-scoped reference dies with the
// request.
type RegistrationCeremony struct {
	resolver    *Resolver
	verifier    *Verifier
	challenges  ChallengeStore
	credentials CredentialStore
	logger      *slog.Logger
}

// NewRegistrationCeremony creates a registration ceremony with the provided
// dependencies.
func NewRegistrationCeremony(params CeremonyParams) (*RegistrationCeremony, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &RegistrationCeremony{
		resolver:    params.Resolver,
		verifier:    params.Verifier,
		challenges:  params.ChallengeStore,
		credentials: params.CredentialStore,
		logger:      params.Logger,
	}, nil
}

// GetOptions resolves the relying party, issues a fresh challenge, and
// returns creation options. Already-registered authenticators are excluded
// so the same device cannot be registered twice.
func (c *RegistrationCeremony) GetOptions(ctx context.Context, identifier, origin, userID string) (*protocol.CredentialCreation, error) {
	rp, err := c.resolver.Resolve(origin)
	if err != nil {
		return nil, err
	}

	existing, err := c.credentials.GetByIdentifier(ctx, rp.ID, identifier, userID)
	if err != nil {
		return nil, WrapError("load credentials", err)
	}

	user, err := newCeremonyUser(identifier, userID, existing)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		id, err := cred.RawID()
		if err != nil {
			return nil, WrapError("decode credential id", err)
		}
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
			Transport:    cred.Transports,
		})
	}

	options, challenge, err := c.verifier.BeginRegistration(rp, user, exclusions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := c.challenges.Create(ctx, Challenge{
		Identifier: identifier,
		RPID:       rp.ID,
		UserID:     userID,
		Value:      challenge,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ChallengeTTL),
	}); err != nil {
		return nil, WrapError("store challenge", err)
	}

	c.logger.Debug("registration options issued",
		"identifier", identifier,
		"rp_id", rp.ID)

	return options, nil
}

// Verify checks an attestation response against the stored challenge and,
// on success, persists the new credential. The stored challenge is deleted
// on every path out of this method, success or failure, so a response can
// never be replayed against the same challenge.
func (c *RegistrationCeremony) Verify(ctx context.Context, identifier, origin string, response *protocol.ParsedCredentialCreationData, userID string) (bool, error) {
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
		return false, NewError("verify registration", ErrChallengeNotFound)
	}

	existing, err := c.credentials.GetByIdentifier(ctx, rp.ID, identifier, userID)
	if err != nil {
		return false, WrapError("load credentials", err)
	}

	user, err := newCeremonyUser(identifier, userID, existing)
	if err != nil {
		return false, err
	}

	verified, err := c.verifier.FinishRegistration(rp, user, challenge.Value, challenge.ExpiresAt, response)
	if err != nil {
		// Cryptographic failures are a non-verified result, not an
		// error: the endpoint must not reveal which check failed.
		c.logger.Debug("registration verification failed",
			"identifier", identifier,
			"rp_id", rp.ID,
			"error", err)
		return false, nil
	}

	credential := newCredential(identifier, userID, rp.ID, verified, time.Now().UTC())
	for _, cred := range existing {
		if cred.CredentialID == credential.CredentialID {
			return true, nil
		}
	}

	if err := c.credentials.Upsert(ctx, credential); err != nil {
		return false, WrapError("store credential", err)
	}

	c.logger.Info("credential registered",
		"identifier", identifier,
		"rp_id", rp.ID,
		"credential_id", credential.CredentialID)

	return true, nil
}

func (c *RegistrationCeremony) discardChallenge(ctx context.Context, identifier, rpID, userID string) {
	if err := c.challenges.Delete(ctx, identifier, rpID, userID); err != nil {
		c.logger.Error("failed to delete challenge",
			"identifier", identifier,
			"rp_id", rpID,
			"error", err)
	}
}
