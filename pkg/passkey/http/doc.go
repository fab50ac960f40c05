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

// Package http provides composable HTTP handlers for passkey ceremonies.
//
// This package allows applications to add passkey registration and
// authentication to their existing HTTP servers without coupling to
// go-passkey's internal REST implementation.
//
// # Usage
//
// Create a handler from the ceremony components and mount it on a router:
//
//	handler, _ := passkeyhttp.NewHandler(passkeyhttp.HandlerParams{
//	    Registration:   registration,
//	    Authentication: authentication,
//	    Resolver:       resolver,
//	    Credentials:    credentials,
//	})
//
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST   /registration/options    - Issue registration options
//	POST   /registration/verify     - Verify an attestation response
//	POST   /authentication/options  - Issue authentication options
//	POST   /authentication/verify   - Verify an assertion response
//	DELETE /credentials             - Remove a registered credential
//
// # Relying Party Selection
//
// Every request is bound to a relying party by its Origin header. The
// origin must match a configured relying party exactly; there is no
// wildcard or fallback matching. Requests from unconfigured origins
// answer 401 with the unknown_origin code before any state is touched.
//
// # Response Format
//
// All responses are JSON. Verification endpoints answer
// {"verified": true|false}; a false result carries no detail about which
// check failed. Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
//
// Domain failures (unknown origin, missing challenge, unknown user or
// authenticator) answer 401; malformed requests answer 400; everything
// unexpected answers 500 with no internal detail.
package http
