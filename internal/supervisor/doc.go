// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package supervisor builds the suture supervision tree the server runs
// under. Long-lived components (HTTP server, audit replayer, live-tail hub,
// stream publisher) are grouped into layers so a crash in one layer
// restarts only its siblings.
package supervisor
