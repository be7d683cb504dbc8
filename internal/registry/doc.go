// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package registry maps organization identifiers to their physical schema
// names. The registry is the single source of truth for this mapping: no
// other component may compute a schema name by formatting the organization
// id, which is what keeps naming-convention drift and identifier injection
// out of the system.
//
// Mappings are created once at provisioning, never mutated, and removed only
// as part of full tenant offboarding. Registration races are settled by the
// store's uniqueness constraints, not by in-process locking.
//
// Two implementations are provided: PostgresRegistry for production and
// MemoryRegistry for tests and single-process development.
package registry
