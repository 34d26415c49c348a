// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// AuthAttempts counts signup/login outcomes by flow.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyfold_auth_attempts_total",
		Help: "Total number of signup and login attempts by flow and outcome",
	},
	[]string{"flow", "outcome"},
)

// TokenVerifications counts token verification outcomes.
var TokenVerifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyfold_token_verifications_total",
		Help: "Total number of bearer token verifications by outcome",
	},
	[]string{"outcome"},
)

// CacheLookups counts user cache lookups by keyspace and result.
var CacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "keyfold_user_cache_lookups_total",
		Help: "Total number of user cache lookups by keyspace and result",
	},
	[]string{"keyspace", "result"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts, TokenVerifications, CacheLookups)
}
