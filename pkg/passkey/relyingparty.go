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
	"fmt"
	"net/url"
	"strings"
)

// RelyingParty describes one trust domain served by the platform. A request
// origin selects exactly one descriptor; there is no wildcarding and no
// positional fallback between configuration lists.
type RelyingParty struct {
	// Origin is the exact web origin (scheme://host[:port]) clients
	// perform ceremonies from.
	Origin string `yaml:"origin" json:"origin"`

	// ID is the WebAuthn rpId credentials are scoped to, typically the
	// registrable domain of Origin.
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable relying party name shown by browsers.
	Name string `yaml:"name" json:"name"`
}

// validate checks a single descriptor for well-formedness.
func (rp RelyingParty) validate() error {
	if strings.TrimSpace(rp.Origin) == "" {
		return fmt.Errorf("relying party origin is required")
	}
	parsed, err := url.Parse(rp.Origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("relying party origin %q is not a valid origin", rp.Origin)
	}
	if parsed.Path != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("relying party origin %q must not include a path", rp.Origin)
	}
	if strings.TrimSpace(rp.ID) == "" {
		return fmt.Errorf("relying party id is required for origin %q", rp.Origin)
	}
	if strings.TrimSpace(rp.Name) == "" {
		return fmt.Errorf("relying party name is required for origin %q", rp.Origin)
	}
	return nil
}

// Resolver maps request origins to relying party descriptors from static
// configuration. Resolution is pure and side-effect free.
type Resolver struct {
	byOrigin map[string]RelyingParty
	parties  []RelyingParty
}

// NewResolver creates a resolver over the configured relying parties.
// Duplicate origins are rejected so a request can never resolve ambiguously.
func NewResolver(parties []RelyingParty) (*Resolver, error) {
	if len(parties) == 0 {
		return nil, fmt.Errorf("at least one relying party is required")
	}

	byOrigin := make(map[string]RelyingParty, len(parties))
	for _, rp := range parties {
		if err := rp.validate(); err != nil {
			return nil, err
		}
		if _, ok := byOrigin[rp.Origin]; ok {
			return nil, fmt.Errorf("duplicate relying party origin %q", rp.Origin)
		}
		byOrigin[rp.Origin] = rp
	}

	return &Resolver{
		byOrigin: byOrigin,
		parties:  append([]RelyingParty(nil), parties...),
	}, nil
}

// Resolve returns the relying party whose configured origin exactly equals
// the request origin. A near-match (subdomain, scheme, port) fails closed
// with ErrUnknownOrigin: accepting it would bind an authenticator to the
// wrong trust domain.
func (r *Resolver) Resolve(origin string) (RelyingParty, error) {
	rp, ok := r.byOrigin[origin]
	if !ok {
		return RelyingParty{}, ErrUnknownOrigin
	}
	return rp, nil
}

// Parties returns the configured relying parties in configuration order.
func (r *Resolver) Parties() []RelyingParty {
	return append([]RelyingParty(nil), r.parties...)
}
