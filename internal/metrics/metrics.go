// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound webhook deliveries by event type and
	// handling outcome (processed, failed, ignored).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvgate",
		Name:      "webhook_events_total",
		Help:      "Inbound webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// AccessGrants counts grant operations against the indicator host.
	AccessGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvgate",
		Name:      "access_grants_total",
		Help:      "Indicator access grant attempts by outcome.",
	}, []string{"outcome"})

	// AccessRevocations counts revoke operations against the indicator host.
	AccessRevocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvgate",
		Name:      "access_revocations_total",
		Help:      "Indicator access revocation attempts by outcome.",
	}, []string{"outcome"})

	// IndicatorProbes counts catalog discovery attempts per endpoint.
	IndicatorProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvgate",
		Name:      "indicator_probes_total",
		Help:      "Indicator list probe attempts by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// GrantDrift counts grants that succeeded on the host but failed to
	// persist locally. Nonzero values call for a manual reconcile.
	GrantDrift = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tvgate",
		Name:      "grant_drift_total",
		Help:      "Host-side grants that could not be recorded in the database.",
	})
)
