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

// Package metrics provides Prometheus instrumentation for passkey ceremony
// operations and the HTTP surface that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelCeremony   = "ceremony"
	LabelRPID       = "rp_id"
	LabelResult     = "result"
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelStatusCode = "status_code"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Result values
	ResultVerified = "verified"
	ResultFailed   = "failed"
	ResultError    = "error"
)

var (
	// ChallengesIssuedTotal tracks issued challenges by ceremony and relying party.
	ChallengesIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "challenges_issued_total",
			Help:      "Total number of challenges issued by ceremony and relying party",
		},
		[]string{LabelCeremony, LabelRPID},
	)

	// CeremoniesTotal tracks completed verification attempts by ceremony and result.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of completed ceremony verifications by result",
		},
		[]string{LabelCeremony, LabelResult},
	)

	// HTTPRequestsTotal tracks HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{LabelMethod, LabelPath, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelMethod, LabelPath},
	)
)

// RecordChallengeIssued increments the issued-challenge counter.
func RecordChallengeIssued(ceremony, rpID string) {
	ChallengesIssuedTotal.WithLabelValues(ceremony, rpID).Inc()
}

// RecordCeremony increments the ceremony result counter.
func RecordCeremony(ceremony, result string) {
	CeremoniesTotal.WithLabelValues(ceremony, result).Inc()
}
