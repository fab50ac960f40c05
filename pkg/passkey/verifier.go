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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
)

// es256Params restricts registration to the ES256 algorithm.
var es256Params = []protocol.CredentialParameter{
	{
		Type:      protocol.PublicKeyCredentialType,
		Algorithm: webauthncose.AlgES256,
	},
}

// Verifier performs the cryptographic half of registration and
// authentication ceremonies. It wraps one go-webauthn instance per relying
// party, all built and validated at construction time.
//
// Cryptographic failures (bad signature, origin or rpId mismatch,
// non-increasing counter) surface as errors the ceremony layer collapses
// into a non-verified result; they are never distinguishable to clients.
type Verifier struct {
	byOrigin map[string]*webauthn.WebAuthn
}

// NewVerifier creates a verifier for the configured relying parties.
func NewVerifier(parties []RelyingParty) (*Verifier, error) {
	if len(parties) == 0 {
		return nil, fmt.Errorf("at least one relying party is required")
	}

	byOrigin := make(map[string]*webauthn.WebAuthn, len(parties))
	for _, rp := range parties {
		wa, err := webauthn.New(&webauthn.Config{
			RPID:                  rp.ID,
			RPDisplayName:         rp.Name,
			RPOrigins:             []string{rp.Origin},
			AttestationPreference: protocol.PreferNoAttestation,
			AuthenticatorSelection: protocol.AuthenticatorSelection{
				ResidentKey:      protocol.ResidentKeyRequirementDiscouraged,
				UserVerification: protocol.VerificationPreferred,
			},
			Timeouts: webauthn.TimeoutsConfig{
				Login: webauthn.TimeoutConfig{
					Enforce:    true,
					Timeout:    ChallengeTTL,
					TimeoutUVD: ChallengeTTL,
				},
				Registration: webauthn.TimeoutConfig{
					Enforce:    true,
					Timeout:    ChallengeTTL,
					TimeoutUVD: ChallengeTTL,
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("relying party %q: %w", rp.Origin, err)
		}
		byOrigin[rp.Origin] = wa
	}

	return &Verifier{byOrigin: byOrigin}, nil
}

func (v *Verifier) instance(rp RelyingParty) (*webauthn.WebAuthn, error) {
	wa, ok := v.byOrigin[rp.Origin]
	if !ok {
		return nil, ErrUnknownOrigin
	}
	return wa, nil
}

// BeginRegistration generates creation options and a fresh challenge for
// the relying party. The returned challenge string is the base64url value
// the ceremony persists for the later verification step.
func (v *Verifier) BeginRegistration(rp RelyingParty, user webauthn.User, exclusions []protocol.CredentialDescriptor) (*protocol.CredentialCreation, string, error) {
	wa, err := v.instance(rp)
	if err != nil {
		return nil, "", err
	}

	options, session, err := wa.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
		webauthn.WithCredentialParameters(es256Params),
	)
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	return options, session.Challenge, nil
}

// FinishRegistration verifies an attestation response against the expected
// challenge, origin, and rpId, returning the newly attested credential.
func (v *Verifier) FinishRegistration(rp RelyingParty, user webauthn.User, challenge string, expiresAt time.Time, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	wa, err := v.instance(rp)
	if err != nil {
		return nil, err
	}

	session := webauthn.SessionData{
		Challenge:        challenge,
		RelyingPartyID:   rp.ID,
		UserID:           user.WebAuthnID(),
		Expires:          expiresAt,
		UserVerification: protocol.VerificationPreferred,
		CredParams:       es256Params,
	}

	credential, err := wa.CreateCredential(user, session, response)
	if err != nil {
		return nil, WrapError("create credential", err)
	}

	return credential, nil
}

// BeginLogin generates assertion options for the relying party. When the
// caller pre-generated a challenge it replaces the library-issued one, so
// flows that mint challenges out of band still round-trip exactly.
func (v *Verifier) BeginLogin(rp RelyingParty, user webauthn.User, challenge string) (*protocol.CredentialAssertion, string, error) {
	wa, err := v.instance(rp)
	if err != nil {
		return nil, "", err
	}

	options, session, err := wa.BeginLogin(user)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}

	if challenge == "" {
		return options, session.Challenge, nil
	}

	raw, err := decodeChallenge(challenge)
	if err != nil {
		return nil, "", err
	}
	options.Response.Challenge = raw
	return options, challenge, nil
}

// FinishLogin verifies an assertion response with the stored public key and
// counter. A signature counter that is not strictly greater than the stored
// value is a hard failure: a non-increase signals a cloned authenticator.
func (v *Verifier) FinishLogin(rp RelyingParty, user webauthn.User, stored *Credential, challenge string, expiresAt time.Time, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	wa, err := v.instance(rp)
	if err != nil {
		return nil, err
	}

	allowedID, err := stored.RawID()
	if err != nil {
		return nil, WrapError("decode credential id", err)
	}

	session := webauthn.SessionData{
		Challenge:            challenge,
		RelyingPartyID:       rp.ID,
		UserID:               user.WebAuthnID(),
		AllowedCredentialIDs: [][]byte{allowedID},
		Expires:              expiresAt,
		UserVerification:     protocol.VerificationPreferred,
	}

	credential, err := wa.ValidateLogin(user, session, response)
	if err != nil {
		return nil, WrapError("validate login", err)
	}

	if credential.Authenticator.CloneWarning || credential.Authenticator.SignCount <= stored.SignCount {
		return nil, NewError("validate login", ErrReplayDetected)
	}

	return credential, nil
}

// decodeChallenge validates a caller-supplied challenge value.
func decodeChallenge(challenge string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(challenge)
	if err != nil {
		return nil, NewError("decode challenge", ErrInvalidChallenge)
	}
	if len(raw) < MinChallengeLength {
		return nil, NewError("decode challenge", ErrInvalidChallenge)
	}
	return raw, nil
}
