// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package api exposes the HTTP surface: organization lifecycle, the
// tenant-scoped entity endpoints, and the audit review endpoints. Every
// data route resolves a tenant context before touching storage; handlers
// never accept a schema name from the request.
package api
