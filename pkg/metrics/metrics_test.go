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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChallengeIssued(t *testing.T) {
	before := testutil.ToFloat64(ChallengesIssuedTotal.WithLabelValues(CeremonyRegistration, "metrics-test.example.com"))
	RecordChallengeIssued(CeremonyRegistration, "metrics-test.example.com")
	after := testutil.ToFloat64(ChallengesIssuedTotal.WithLabelValues(CeremonyRegistration, "metrics-test.example.com"))
	assert.Equal(t, before+1, after)
}

func TestRecordCeremony(t *testing.T) {
	before := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, ResultVerified))
	RecordCeremony(CeremonyAuthentication, ResultVerified)
	after := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, ResultVerified))
	assert.Equal(t, before+1, after)
}

func TestHTTPMiddleware(t *testing.T) {
	router := chi.NewRouter()
	router.Use(HTTPMiddleware)
	router.Post("/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/widgets/{id}", "201"))

	req := httptest.NewRequest(http.MethodPost, "/widgets/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The route pattern, not the raw path, is the label value
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/widgets/{id}", "201"))
	assert.Equal(t, before+1, after)
}
