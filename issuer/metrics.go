/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package issuer

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	tokensIssued       prometheus.Counter
	tokenFailures      *prometheus.CounterVec
	credentialsIssued  *prometheus.CounterVec
	credentialFailures *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openid4vci",
			Subsystem: "issuer",
			Name:      "access_tokens_issued_total",
			Help:      "Number of access tokens issued on the token endpoint.",
		}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vci",
			Subsystem: "issuer",
			Name:      "token_request_failures_total",
			Help:      "Number of failed token requests, partitioned by OAuth2 error code.",
		}, []string{"error"}),
		credentialsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vci",
			Subsystem: "issuer",
			Name:      "credentials_issued_total",
			Help:      "Number of credentials issued, partitioned by format.",
		}, []string{"format"}),
		credentialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openid4vci",
			Subsystem: "issuer",
			Name:      "credential_request_failures_total",
			Help:      "Number of failed credential requests, partitioned by OAuth2 error code.",
		}, []string{"error"}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.tokensIssued,
		m.tokenFailures,
		m.credentialsIssued,
		m.credentialFailures,
	}
}
