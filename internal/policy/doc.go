// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package policy manages the storage-level isolation backstop: Postgres
// row-level security on tables that are intentionally shared across
// tenants.
//
// The application layer can have bugs; RLS is the last line. Each shared
// table gets a policy filtering rows on the organization asserted by the
// current database session, so a raw query that bypasses the scoped handle
// still cannot return foreign-tenant rows. The session assertion is made
// with transaction-local set_config, so it dies with the transaction and
// can never leak across pooled connections.
package policy
