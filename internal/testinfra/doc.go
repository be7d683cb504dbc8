// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package testinfra provides container-backed infrastructure for
// integration tests. It uses testcontainers-go to run a real Postgres, so
// schema provisioning, row-level-security policies, and the registry can
// be exercised against the same engine production runs on.
//
// Everything here is behind the integration build tag; unit tests never
// pull in Docker.
//
//	func TestProvisioning(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    pg, err := testinfra.NewPostgresContainer(context.Background())
//	    ...
//	}
package testinfra
