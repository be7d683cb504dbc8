// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package scoped provides the scoped data handle, the only sanctioned
// accessor for tenant-owned entities.
//
// A Handle is constructed from a resolved tenancy.Context and is bound to
// that context's schema for its whole lifetime; no method accepts a schema
// parameter and no constructor accepts a raw schema string. Isolation is
// structural: a handle bound to org A has no operation that can be
// parameterized to reach org B's partition.
//
// Every operation is audited before it executes. Write operations require
// the durable audit path; if the audit trail cannot be recorded under the
// configured policy, the operation never reaches the store. Shared
// (non-tenant-partitioned) entities are rejected here with
// tenancy.ErrNotATenantEntity and must be read through SharedReader, which
// runs inside a row-level-security scoped session instead.
package scoped
