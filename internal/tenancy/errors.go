// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package tenancy

import "errors"

// Isolation-layer failure taxonomy. These are the only errors this layer
// introduces; storage-level errors pass through wrapped but unclassified.
var (
	// ErrUnauthenticated means no valid principal accompanied the request.
	// Always fatal to the request.
	ErrUnauthenticated = errors.New("no authenticated principal")

	// ErrForbidden means the principal is authenticated but not entitled to
	// the requested organization. Never silently narrowed to the home
	// organization; the request is rejected.
	ErrForbidden = errors.New("principal not entitled to requested organization")

	// ErrUnknownOrganization means no schema mapping exists for the
	// organization. Signals a provisioning bug or an offboarded tenant.
	ErrUnknownOrganization = errors.New("no schema mapping for organization")

	// ErrNotATenantEntity means a tenant-scoped accessor was asked for an
	// entity that is shared across tenants (or unknown entirely). Programmer
	// error, intended to surface in development and testing.
	ErrNotATenantEntity = errors.New("entity is not tenant-scoped")

	// ErrAuditDegraded means the audit trail for a write-path access could
	// not be durably recorded and the configured policy is fail-closed.
	ErrAuditDegraded = errors.New("audit trail could not be durably recorded")
)
