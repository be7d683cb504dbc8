// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vallum-project/vallum/internal/metrics"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// MemoryRegistry implements Registry with in-process storage. Suitable for
// tests and development; mappings are lost on restart. Safe for concurrent
// use; the mutex stands in for the uniqueness constraints the Postgres
// implementation delegates to the store.
type MemoryRegistry struct {
	mu       sync.RWMutex
	byOrg    map[string]Mapping
	bySchema map[string]string // schema name -> org id
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byOrg:    make(map[string]Mapping),
		bySchema: make(map[string]string),
	}
}

// SchemaFor returns the schema mapped to the organization.
func (r *MemoryRegistry) SchemaFor(_ context.Context, orgID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byOrg[orgID]
	if !ok {
		metrics.RecordRegistryLookup("miss")
		return "", tenancy.ErrUnknownOrganization
	}
	metrics.RecordRegistryLookup("hit")
	return m.SchemaName, nil
}

// Register creates the mapping. Identical re-registration is a no-op;
// any conflicting pair fails with ErrSchemaAlreadyExists.
func (r *MemoryRegistry) Register(_ context.Context, orgID, schemaName string) error {
	if err := ValidateOrgID(orgID); err != nil {
		metrics.RecordRegistration("error")
		return err
	}
	if err := ValidateSchemaName(schemaName); err != nil {
		metrics.RecordRegistration("error")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byOrg[orgID]; ok {
		if existing.SchemaName == schemaName {
			metrics.RecordRegistration("idempotent")
			return nil
		}
		metrics.RecordRegistration("conflict")
		return ErrSchemaAlreadyExists
	}
	if _, claimed := r.bySchema[schemaName]; claimed {
		metrics.RecordRegistration("conflict")
		return ErrSchemaAlreadyExists
	}

	r.byOrg[orgID] = Mapping{OrgID: orgID, SchemaName: schemaName, CreatedAt: time.Now().UTC()}
	r.bySchema[schemaName] = orgID
	metrics.RecordRegistration("created")
	return nil
}

// Exists reports whether the organization has a mapping.
func (r *MemoryRegistry) Exists(_ context.Context, orgID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byOrg[orgID]
	return ok, nil
}

// Deregister removes the mapping. Removing an absent mapping is a no-op,
// so offboarding retries are safe.
func (r *MemoryRegistry) Deregister(_ context.Context, orgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.byOrg[orgID]; ok {
		delete(r.bySchema, m.SchemaName)
		delete(r.byOrg, orgID)
	}
	return nil
}

// List returns all mappings ordered by organization id.
func (r *MemoryRegistry) List(_ context.Context) ([]Mapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Mapping, 0, len(r.byOrg))
	for _, m := range r.byOrg {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrgID < out[j].OrgID })
	return out, nil
}
