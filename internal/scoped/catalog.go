// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scoped

import (
	"fmt"
	"regexp"
	"sort"
)

// entityNamePattern keeps entity names within safe identifier shape; the
// entity name doubles as the table name inside each tenant schema.
var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Catalog classifies entity types as tenant-owned or shared. The catalog is
// configuration, fixed for the process lifetime; the handle consults it
// before every operation so an unknown or shared entity is rejected before
// any statement is built.
type Catalog struct {
	tenant map[string]bool
	shared map[string]bool
}

// NewCatalog builds a catalog from the configured entity lists. Overlapping
// or malformed names are rejected: an entity that is both tenant-owned and
// shared would make the dispatch ambiguous.
func NewCatalog(tenantEntities, sharedEntities []string) (*Catalog, error) {
	c := &Catalog{
		tenant: make(map[string]bool, len(tenantEntities)),
		shared: make(map[string]bool, len(sharedEntities)),
	}
	for _, name := range tenantEntities {
		if !entityNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid tenant entity name %q", name)
		}
		c.tenant[name] = true
	}
	for _, name := range sharedEntities {
		if !entityNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid shared entity name %q", name)
		}
		if c.tenant[name] {
			return nil, fmt.Errorf("entity %q declared both tenant-owned and shared", name)
		}
		c.shared[name] = true
	}
	return c, nil
}

// IsTenantEntity reports whether the entity is tenant-partitioned.
func (c *Catalog) IsTenantEntity(entity string) bool {
	return c.tenant[entity]
}

// IsShared reports whether the entity is intentionally shared across
// tenants.
func (c *Catalog) IsShared(entity string) bool {
	return c.shared[entity]
}

// TenantEntities returns the tenant-owned entity names, sorted. The
// provisioner uses this to create per-schema tables.
func (c *Catalog) TenantEntities() []string {
	out := make([]string, 0, len(c.tenant))
	for name := range c.tenant {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SharedEntities returns the shared entity names, sorted.
func (c *Catalog) SharedEntities() []string {
	out := make([]string, 0, len(c.shared))
	for name := range c.shared {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
