// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package metrics provides Prometheus instrumentation for the isolation
// layer: context resolution outcomes, scoped handle operations, audit
// pipeline health, and API latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Context resolution metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_resolutions_total",
			Help: "Total number of tenant context resolutions by outcome",
		},
		[]string{"outcome"}, // ok, forbidden, unauthenticated, unknown_organization, registry_error
	)

	// Schema registry metrics
	RegistryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_registry_lookups_total",
			Help: "Total number of schema registry lookups",
		},
		[]string{"outcome"}, // hit, miss, error
	)

	RegistryRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_registry_registrations_total",
			Help: "Total number of schema registration attempts",
		},
		[]string{"outcome"}, // created, idempotent, conflict, error
	)

	// Scoped handle metrics
	HandleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_handle_operations_total",
			Help: "Total number of scoped data handle operations",
		},
		[]string{"entity", "operation", "outcome"}, // outcome: ok, denied, not_found, error
	)

	HandleOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vallum_handle_operation_duration_seconds",
			Help:    "Duration of scoped data handle operations in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entity", "operation"},
	)

	CrossTenantAccessTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vallum_cross_tenant_access_total",
			Help: "Total number of master-role operations against a foreign organization",
		},
	)

	// Audit pipeline metrics
	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_audit_entries_total",
			Help: "Total number of audit entries by recording path and outcome",
		},
		[]string{"path", "outcome"}, // path: durable, async; outcome: stored, spooled, dropped, failed
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vallum_audit_queue_depth",
			Help: "Current number of read-path audit entries waiting in the async queue",
		},
	)

	AuditSpoolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vallum_audit_spool_depth",
			Help: "Current number of audit entries held in the degraded-mode spool",
		},
	)

	AuditDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vallum_audit_degraded",
			Help: "Whether the audit pipeline is in degraded mode (1) or healthy (0)",
		},
	)

	AuditReplayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_audit_replay_total",
			Help: "Total number of spooled audit entries replayed to the primary store",
		},
		[]string{"outcome"}, // ok, failed
	)

	AuditStreamPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_audit_stream_published_total",
			Help: "Total number of audit entries published to the event stream",
		},
		[]string{"outcome"}, // ok, failed
	)

	// Circuit breaker metrics (audit primary store)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vallum_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// RLS policy metrics
	PolicyApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_policy_applications_total",
			Help: "Total number of row-level security policy applications",
		},
		[]string{"outcome"}, // ok, error
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vallum_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vallum_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vallum_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Websocket audit tail metrics
	TailConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vallum_audit_tail_connections",
			Help: "Current number of connected audit tail clients",
		},
	)

	TailMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vallum_audit_tail_messages_sent_total",
			Help: "Total number of audit entries broadcast to tail clients",
		},
	)
)

// RecordResolution records a context resolution outcome.
func RecordResolution(outcome string) {
	ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistryLookup records a schema registry lookup outcome.
func RecordRegistryLookup(outcome string) {
	RegistryLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistration records a schema registration outcome.
func RecordRegistration(outcome string) {
	RegistryRegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordHandleOperation records one scoped handle operation.
func RecordHandleOperation(entity, operation, outcome string, duration time.Duration) {
	HandleOperationsTotal.WithLabelValues(entity, operation, outcome).Inc()
	HandleOperationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordCrossTenantAccess records a master-role operation on a foreign org.
func RecordCrossTenantAccess() {
	CrossTenantAccessTotal.Inc()
}

// RecordAuditEntry records an audit entry outcome on the given path.
func RecordAuditEntry(path, outcome string) {
	AuditEntriesTotal.WithLabelValues(path, outcome).Inc()
}

// SetAuditDegraded flips the degraded-mode gauge.
func SetAuditDegraded(degraded bool) {
	if degraded {
		AuditDegraded.Set(1)
	} else {
		AuditDegraded.Set(0)
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBreakerTransition records a circuit breaker state change and updates
// the state gauge.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
