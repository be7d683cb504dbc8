// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package authn verifies request credentials and produces the
// tenancy.Principal the resolver consumes. It supports HS256 bearer tokens
// and HTTP Basic credentials, composed through a priority chain.
//
// This package decides only WHO the caller is. Role interpretation, the
// organization the request may act as, and the physical schema all belong
// to the resolver; authn never reads the requested-organization header
// beyond carrying it through untouched.
package authn
