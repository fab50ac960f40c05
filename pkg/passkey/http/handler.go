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

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for passkey ceremony operations. The
// relying party is selected by the request's Origin header; a request
// from an unconfigured origin is rejected before any state is touched.
type Handler struct {
	registration   *passkey.RegistrationCeremony
	authentication *passkey.AuthenticationCeremony
	resolver       *passkey.Resolver
	credentials    passkey.CredentialStore
	logger         *slog.Logger
}

// HandlerParams contains the dependencies for a Handler.
type HandlerParams struct {
	Registration   *passkey.RegistrationCeremony
	Authentication *passkey.AuthenticationCeremony
	Resolver       *passkey.Resolver
	Credentials    passkey.CredentialStore
	Logger         *slog.Logger
}

// NewHandler creates a passkey HTTP handler.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Registration == nil {
		return nil, errors.New("registration ceremony is required")
	}
	if params.Authentication == nil {
		return nil, errors.New("authentication ceremony is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if params.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	return &Handler{
		registration:   params.Registration,
		authentication: params.Authentication,
		resolver:       params.Resolver,
		credentials:    params.Credentials,
		logger:         params.Logger,
	}, nil
}

// RegistrationOptions handles POST /registration/options
//
// Request body:
//
//	{
//	    "identifier": "user@example.com",
//	    "user_id": "optional explicit user id"
//	}
//
// Response: PublicKeyCredentialCreationOptions for the relying party
// matching the request's Origin header.
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeOptionsRequest(w, r)
	if !ok {
		return
	}

	options, err := h.registration.GetOptions(r.Context(), req.Identifier, requestOrigin(r), req.UserID)
	if err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	h.recordChallengeIssued(metrics.CeremonyRegistration, requestOrigin(r))
	h.writeJSON(w, http.StatusOK, options)
}

// VerifyRegistration handles POST /registration/verify
//
// Request body:
//
//	{
//	    "identifier": "user@example.com",
//	    "user_id": "optional explicit user id",
//	    "response": { ...attestation response... }
//	}
//
// Response: {"verified": true|false}
func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeVerifyRequest(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	verified, err := h.registration.Verify(r.Context(), req.Identifier, requestOrigin(r), response, req.UserID)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.ResultError)
		h.handleCeremonyError(w, err)
		return
	}

	h.recordResult(metrics.CeremonyRegistration, verified)
	h.writeJSON(w, http.StatusOK, VerifyResponse{Verified: verified})
}

// AuthenticationOptions handles POST /authentication/options
//
// Request body:
//
//	{
//	    "identifier": "user@example.com",
//	    "user_id": "optional explicit user id",
//	    "challenge": "optional pre-generated base64url challenge"
//	}
//
// Response: PublicKeyCredentialRequestOptions with an allow-list of the
// identifier's registered credentials.
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeOptionsRequest(w, r)
	if !ok {
		return
	}

	options, err := h.authentication.GetOptions(r.Context(), req.Identifier, requestOrigin(r), req.Challenge, req.UserID)
	if err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	h.recordChallengeIssued(metrics.CeremonyAuthentication, requestOrigin(r))
	h.writeJSON(w, http.StatusOK, options)
}

// VerifyAuthentication handles POST /authentication/verify
//
// Request body:
//
//	{
//	    "identifier": "user@example.com",
//	    "user_id": "optional explicit user id",
//	    "response": { ...assertion response... }
//	}
//
// Response: {"verified": true|false}
func (h *Handler) VerifyAuthentication(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeVerifyRequest(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	verified, err := h.authentication.Verify(r.Context(), req.Identifier, requestOrigin(r), response, req.UserID)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.ResultError)
		h.handleCeremonyError(w, err)
		return
	}

	h.recordResult(metrics.CeremonyAuthentication, verified)
	h.writeJSON(w, http.StatusOK, VerifyResponse{Verified: verified})
}

// RemoveCredential handles DELETE /credentials
//
// Request body:
//
//	{
//	    "identifier": "user@example.com",
//	    "credential_id": "base64url credential id"
//	}
//
// Removal is scoped to the relying party of the request origin and to
// the owning identifier, so one user cannot delete another's credential.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	var req RemoveCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identifier is required")
		return
	}
	if req.CredentialID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "credential_id is required")
		return
	}

	rp, err := h.resolver.Resolve(requestOrigin(r))
	if err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	if err := h.credentials.Remove(r.Context(), rp.ID, req.Identifier, req.CredentialID); err != nil {
		h.handleCeremonyError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeOptionsRequest(w http.ResponseWriter, r *http.Request) (OptionsRequest, bool) {
	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return req, false
	}
	if req.Identifier == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identifier is required")
		return req, false
	}
	return req, true
}

func (h *Handler) decodeVerifyRequest(w http.ResponseWriter, r *http.Request) (VerifyRequest, bool) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return req, false
	}
	if req.Identifier == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identifier is required")
		return req, false
	}
	if len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "response is required")
		return req, false
	}
	return req, true
}

// handleCeremonyError maps ceremony errors to HTTP responses. Domain
// failures answer 401 without detail beyond the error code; everything
// unexpected collapses to a generic 500.
func (h *Handler) handleCeremonyError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsUnknownOrigin(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnknownOrigin, "origin is not configured")
	case passkey.IsChallengeNotFound(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeChallengeNotFound, "no live challenge for this request")
	case passkey.IsUserNotFound(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUserNotFound, "no credentials registered for this identifier")
	case passkey.IsAuthenticatorNotRegistered(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeAuthenticatorNotRegistered, "authenticator is not registered")
	case errors.Is(err, passkey.ErrCredentialNotFound):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeCredentialNotFound, "credential not found")
	case errors.Is(err, passkey.ErrInvalidChallenge):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid challenge value")
	default:
		h.logger.Error("ceremony failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

func (h *Handler) recordChallengeIssued(ceremony, origin string) {
	if rp, err := h.resolver.Resolve(origin); err == nil {
		metrics.RecordChallengeIssued(ceremony, rp.ID)
	}
}

func (h *Handler) recordResult(ceremony string, verified bool) {
	if verified {
		metrics.RecordCeremony(ceremony, metrics.ResultVerified)
	} else {
		metrics.RecordCeremony(ceremony, metrics.ResultFailed)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// requestOrigin extracts the web origin the browser attached to the
// request. Resolution against configuration happens in the ceremony, so
// an absent header simply fails as an unknown origin.
func requestOrigin(r *http.Request) string {
	return r.Header.Get("Origin")
}
