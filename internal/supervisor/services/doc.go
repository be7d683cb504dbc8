// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package services adapts lifecycle-managed components to suture's Serve
// contract where they do not implement it themselves.
package services
