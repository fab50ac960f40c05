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
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts passkey routes on a chi router.
//
// Example:
//
//	handler, _ := passkeyhttp.NewHandler(params)
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/options", h.RegistrationOptions)
	r.Post("/registration/verify", h.VerifyRegistration)
	r.Post("/authentication/options", h.AuthenticationOptions)
	r.Post("/authentication/verify", h.VerifyAuthentication)
	r.Delete("/credentials", h.RemoveCredential)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting on routers
// without a chi-compatible interface.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodPost, Path: "/registration/options", Handler: h.RegistrationOptions},
		{Method: http.MethodPost, Path: "/registration/verify", Handler: h.VerifyRegistration},
		{Method: http.MethodPost, Path: "/authentication/options", Handler: h.AuthenticationOptions},
		{Method: http.MethodPost, Path: "/authentication/verify", Handler: h.VerifyAuthentication},
		{Method: http.MethodDelete, Path: "/credentials", Handler: h.RemoveCredential},
	}
}
