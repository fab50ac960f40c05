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
	"errors"
	"fmt"
)

// Sentinel errors for passkey operations.
var (
	// ErrUnknownOrigin is returned when a request origin does not exactly
	// match any configured relying party. No challenge is issued.
	ErrUnknownOrigin = errors.New("origin is not configured for any relying party")

	// ErrChallengeNotFound is returned when the expected challenge is
	// missing, expired, or already consumed. The ceremony must be restarted.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrUserNotFound is returned when an identifier has no registered
	// credentials for the relying party.
	ErrUserNotFound = errors.New("user has no registered credentials")

	// ErrAuthenticatorNotRegistered is returned when the presented
	// credential id is unknown for the identifier.
	ErrAuthenticatorNotRegistered = errors.New("authenticator is not registered")

	// ErrReplayDetected is returned by credential stores when a signature
	// counter write is not strictly greater than the stored value.
	ErrReplayDetected = errors.New("signature counter did not increase")

	// ErrCredentialNotFound is returned when a credential cannot be found
	// by its external credential id.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidChallenge is returned when a caller-supplied challenge
	// value is malformed or too short.
	ErrInvalidChallenge = errors.New("invalid challenge value")

	// ErrNotConfigured is returned when a ceremony is missing required
	// dependencies.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// Error wraps an error with the operation that produced it.
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with the given operation and error.
func NewError(op string, err error) error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUnknownOrigin returns true if the error indicates an unconfigured origin.
func IsUnknownOrigin(err error) bool {
	return errors.Is(err, ErrUnknownOrigin)
}

// IsChallengeNotFound returns true if the error indicates a missing,
// expired, or consumed challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsUserNotFound returns true if the error indicates an identifier with no
// registered credentials.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsAuthenticatorNotRegistered returns true if the error indicates an
// unknown credential id for the identifier.
func IsAuthenticatorNotRegistered(err error) bool {
	return errors.Is(err, ErrAuthenticatorNotRegistered)
}

// IsReplayDetected returns true if the error indicates a non-increasing
// signature counter write.
func IsReplayDetected(err error) bool {
	return errors.Is(err, ErrReplayDetected)
}
