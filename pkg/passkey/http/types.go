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

package http

import "encoding/json"

// OptionsRequest is the request body for issuing registration or
// authentication options.
type OptionsRequest struct {
	// Identifier is the user-facing handle, typically an email address
	// (required).
	Identifier string `json:"identifier"`

	// UserID optionally pins the ceremony to an explicit user id. When
	// empty, a deterministic handle is derived from the identifier.
	UserID string `json:"user_id,omitempty"`

	// Challenge optionally supplies a pre-generated base64url challenge
	// value. Only honored for authentication options.
	Challenge string `json:"challenge,omitempty"`
}

// VerifyRequest is the request body for verifying an attestation or
// assertion response.
type VerifyRequest struct {
	// Identifier is the user-facing handle (required).
	Identifier string `json:"identifier"`

	// UserID must match the value used when options were issued.
	UserID string `json:"user_id,omitempty"`

	// Response is the raw authenticator response exactly as produced by
	// navigator.credentials.create() or .get().
	Response json.RawMessage `json:"response"`
}

// VerifyResponse reports the outcome of a verification attempt. There is
// no partial success: verified is true only when every check passed and
// the resulting mutation was persisted.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// RemoveCredentialRequest is the request body for deleting a credential.
type RemoveCredentialRequest struct {
	// Identifier is the owning user handle (required).
	Identifier string `json:"identifier"`

	// CredentialID is the base64url external credential id (required).
	CredentialID string `json:"credential_id"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the machine-readable error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message,omitempty"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest             = "invalid_request"
	ErrorCodeUnknownOrigin              = "unknown_origin"
	ErrorCodeChallengeNotFound          = "challenge_not_found"
	ErrorCodeUserNotFound               = "user_not_found"
	ErrorCodeAuthenticatorNotRegistered = "authenticator_not_registered"
	ErrorCodeCredentialNotFound         = "credential_not_found"
	ErrorCodeInternalError              = "internal_error"
)
