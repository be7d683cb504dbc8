// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package tenancy defines the tenant context model and the context resolver.
//
// The resolver is the single entry point that turns an authenticated
// principal plus a requested organization into an immutable Context bound to
// exactly one schema. Non-master principals are locked to their home
// organization; the master role may act across organizations, and every such
// resolution is marked for mandatory auditing downstream.
//
// Downstream code treats a resolved Context as already authorized: role
// interpretation for organization selection happens here and nowhere else.
package tenancy
