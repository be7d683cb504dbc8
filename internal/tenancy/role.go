// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package tenancy

import "fmt"

// Role is the closed set of principal roles known to the isolation layer.
// Only the distinction master / non-master matters for organization
// selection; the finer-grained roles exist for audit records and for the
// operational API's RBAC.
type Role string

const (
	RoleSeller  Role = "seller"
	RoleManager Role = "manager"
	RoleAuditor Role = "auditor"
	RoleAdmin   Role = "admin"

	// RoleMaster is the elevated role permitted to act across tenants,
	// subject to mandatory audit logging.
	RoleMaster Role = "master"
)

// knownRoles is the authoritative membership set for ParseRole and Valid.
var knownRoles = map[Role]struct{}{
	RoleSeller:  {},
	RoleManager: {},
	RoleAuditor: {},
	RoleAdmin:   {},
	RoleMaster:  {},
}

// ParseRole converts a string to a Role, rejecting anything outside the
// closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// IsMaster reports whether the role is the elevated cross-tenant role.
func (r Role) IsMaster() bool {
	return r == RoleMaster
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
