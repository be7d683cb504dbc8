// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package validation wraps go-playground/validator v10 behind a thread-safe
// singleton with Vallum-specific validators: org_id, schema_name,
// entity_name, and tenant_role. Request structs in the API and the config
// loader both validate through it, so identifier shape rules live in one
// place.
package validation
