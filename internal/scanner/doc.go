// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package scanner is the offline violation scanner: static analysis over Go
// packages that flags data-access call sites bypassing the scoped data
// handle.
//
// Two analyzers are provided. UnscopedAccess reports raw database/sql or
// pgx call sites whose SQL touches a configured tenant-owned entity table
// outside the isolation layer's own packages. SchemaConcat reports SQL
// strings that splice a schema identifier in by concatenation or
// fmt.Sprintf instead of using the registry-resolved, sanitized identifier.
//
// The scanner is advisory tooling for CI; it has no runtime role. The
// structural guarantee remains the handle itself; the scanner exists to
// catch code that was written around it.
package scanner
