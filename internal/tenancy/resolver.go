// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package tenancy

import (
	stdcontext "context"
	"errors"
	"fmt"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
)

// SchemaLookup is the registry surface the resolver depends on.
// Satisfied by registry.Registry.
type SchemaLookup interface {
	SchemaFor(ctx stdcontext.Context, orgID string) (string, error)
}

// Resolver derives immutable tenant contexts from authenticated principals.
// It is the only component that interprets role for organization selection.
//
// Resolution fails closed: any denial happens here, before a data handle is
// constructed and before any statement can reach the store. Because no
// loggable data access has been attempted yet, resolver denials produce no
// audit entries; the authoritative audit record is written by the access
// recorder when a handle operation is attempted.
type Resolver struct {
	registry SchemaLookup
}

// NewResolver creates a resolver backed by the given schema registry.
func NewResolver(registry SchemaLookup) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve produces the tenant context for one request.
//
// requestedOrg is the organization the request asks to act as; empty means
// the principal's home organization. Non-master principals requesting a
// foreign organization are rejected with ErrForbidden; the mismatch is
// never silently downgraded to the home organization.
func (r *Resolver) Resolve(ctx stdcontext.Context, p Principal, requestedOrg string) (*Context, error) {
	if !p.valid() {
		metrics.RecordResolution("unauthenticated")
		return nil, ErrUnauthenticated
	}

	acting := p.OrganizationID
	if requestedOrg != "" && requestedOrg != p.OrganizationID {
		if !p.Role.IsMaster() {
			metrics.RecordResolution("forbidden")
			logging.Ctx(ctx).Warn().
				Str("user_id", p.UserID).
				Str("role", p.Role.String()).
				Str("home_org", p.OrganizationID).
				Str("requested_org", requestedOrg).
				Msg("Cross-organization request denied")
			return nil, ErrForbidden
		}
		acting = requestedOrg
	}

	schema, err := r.registry.SchemaFor(ctx, acting)
	if err != nil {
		if errors.Is(err, ErrUnknownOrganization) {
			metrics.RecordResolution("unknown_organization")
			logging.Ctx(ctx).Warn().
				Str("user_id", p.UserID).
				Str("org", acting).
				Msg("Resolution failed: organization has no schema mapping")
			return nil, fmt.Errorf("resolve organization %s: %w", acting, ErrUnknownOrganization)
		}
		metrics.RecordResolution("registry_error")
		return nil, fmt.Errorf("resolve organization %s: %w", acting, err)
	}

	cross := p.Role.IsMaster() && acting != p.OrganizationID
	if cross {
		logging.Ctx(ctx).Info().
			Str("user_id", p.UserID).
			Str("home_org", p.OrganizationID).
			Str("acting_org", acting).
			Msg("Master principal resolved for cross-tenant access")
	}

	metrics.RecordResolution("ok")
	return &Context{
		userID:      p.UserID,
		role:        p.Role,
		orgID:       acting,
		homeOrgID:   p.OrganizationID,
		schemaName:  schema,
		crossTenant: cross,
	}, nil
}
