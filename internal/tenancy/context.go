// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package tenancy

import (
	stdcontext "context"
)

// Principal is the authenticated identity handed to the resolver.
// Credential verification is the authentication subsystem's job; by the time
// a Principal reaches this package it is trusted.
type Principal struct {
	// UserID identifies the authenticated user.
	UserID string

	// Role is the principal's role within its home organization.
	Role Role

	// OrganizationID is the principal's home organization.
	OrganizationID string
}

// valid reports whether the principal carries the minimum fields the
// resolver requires. An invalid principal is treated as unauthenticated.
func (p Principal) valid() bool {
	return p.UserID != "" && p.OrganizationID != "" && p.Role.Valid()
}

// Context is the resolved, immutable (principal, role, organization, schema)
// tuple for one request. It is produced exclusively by Resolver.Resolve and
// is never shared across requests. Fields are unexported so a Context cannot
// be rebound to a different schema after construction.
type Context struct {
	userID      string
	role        Role
	orgID       string
	homeOrgID   string
	schemaName  string
	crossTenant bool
}

// UserID returns the acting principal's user id.
func (c *Context) UserID() string { return c.userID }

// Role returns the acting principal's role.
func (c *Context) Role() Role { return c.role }

// OrganizationID returns the organization this request acts as.
func (c *Context) OrganizationID() string { return c.orgID }

// HomeOrganizationID returns the principal's own organization, which may
// differ from OrganizationID only for the master role.
func (c *Context) HomeOrganizationID() string { return c.homeOrgID }

// SchemaName returns the physical partition resolved for OrganizationID.
// It is derived server-side via the schema registry, never client-supplied.
func (c *Context) SchemaName() string { return c.schemaName }

// CrossTenant reports whether this context represents a master principal
// acting outside its home organization. Such access is permitted but every
// mediated operation under it is flagged in the audit log.
func (c *Context) CrossTenant() bool { return c.crossTenant }

// requestContextKey carries a resolved Context through a request's
// context.Context without colliding with other packages' keys.
type requestContextKey struct{}

// IntoContext attaches a resolved tenant context to a request context.
func IntoContext(ctx stdcontext.Context, tc *Context) stdcontext.Context {
	return stdcontext.WithValue(ctx, requestContextKey{}, tc)
}

// FromContext extracts the tenant context attached by IntoContext.
func FromContext(ctx stdcontext.Context) (*Context, bool) {
	tc, ok := ctx.Value(requestContextKey{}).(*Context)
	return tc, ok && tc != nil
}
