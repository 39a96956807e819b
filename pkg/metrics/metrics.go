// Package metrics defines the Prometheus collectors for teamtrack-engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency per route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// AuthzDecisions counts authorization engine outcomes per action.
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// MilestoneTransitions counts milestone status transitions.
	MilestoneTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_transitions_total",
			Help: "Milestone status transitions by source and target state",
		},
		[]string{"from", "to"},
	)
)

// DecisionOutcome converts an allow/deny result to a metric label.
func DecisionOutcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
