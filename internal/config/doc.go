// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package config loads server configuration with koanf's layered model:
// struct defaults, then an optional YAML file, then VALLUM_* environment
// variables. Configuration is static for the process lifetime; mappings
// and catalogs change by restart, not reload.
package config
