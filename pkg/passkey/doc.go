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

// Package passkey provides passwordless WebAuthn (FIDO2) authentication for
// a multi-tenant, multi-origin platform.
//
// This package wraps the go-webauthn/webauthn library and provides:
//   - Exact-match relying party resolution from static configuration
//   - Single-use, TTL-bound challenge persistence with pluggable storage
//   - Registration and authentication ceremonies with replay detection
//   - In-memory storage implementations for development/testing
//
// # Architecture
//
// The package is designed with a layered architecture:
//
//  1. Ceremony layer (RegistrationCeremony, AuthenticationCeremony) -
//     orchestration of options issuance and response verification
//  2. Verification layer (Verifier) - cryptographic checks via go-webauthn
//  3. Storage layer (ChallengeStore, CredentialStore) - pluggable persistence
//  4. HTTP layer (pkg/passkey/http) - composable chi handlers
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	resolver, err := passkey.NewResolver([]passkey.RelyingParty{
//	    {Origin: "https://app.example.com", ID: "example.com", Name: "Example"},
//	})
//	verifier, err := passkey.NewVerifier(resolver.Parties())
//	registration, err := passkey.NewRegistrationCeremony(passkey.CeremonyParams{
//	    Resolver:        resolver,
//	    Verifier:        verifier,
//	    ChallengeStore:  passkey.NewMemoryChallengeStore(),
//	    CredentialStore: passkey.NewMemoryCredentialStore(),
//	})
//
// For production, use the SQLite stores in pkg/passkey/sqlite or implement
// the storage interfaces with your database.
//
// # Security invariants
//
// At most one live challenge exists per (identifier, rpId, userId) scope,
// and every challenge is consumed by exactly one verification attempt. A
// signature counter is only ever replaced by a strictly greater value; a
// non-increase is treated as a cloned authenticator. Origins resolve to
// relying parties by exact match only.
//
// # WebAuthn Specification Compliance
//
// This implementation follows the W3C Web Authentication specification:
//   - https://www.w3.org/TR/webauthn-2/
//   - https://www.w3.org/TR/webauthn-3/
package passkey
