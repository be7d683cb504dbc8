// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package authz gates the operational API surface by role using Casbin
// RBAC. It answers "may this role call this route group at all"; it says
// nothing about WHICH organization's data a request touches. That question
// belongs to the resolver and the scoped data handle, which run after this
// gate and independently of it.
//
// The model and default policy are embedded so a bare binary is fully
// authorized-configured; an operator can override the policy with a file.
package authz
