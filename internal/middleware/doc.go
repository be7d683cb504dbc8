// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package middleware holds the HTTP middlewares shared across the API:
// request-id propagation and Prometheus request instrumentation. CORS,
// compression, and rate limiting come from chi's ecosystem and are wired
// directly in the router.
package middleware
