// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package audit records every mediated data-access decision as an immutable
// AccessLogEntry and exposes the review surface over those entries.
//
// Two recording paths exist. Write-path accesses (create/update/delete) go
// through RecordDurable: the entry must be durably held somewhere before the
// scoped handle proceeds to the store. Read-path accesses go through Record,
// an async buffered path, since a lost read entry is a visibility gap rather
// than an integrity problem.
//
// The durable path wraps the primary store in a circuit breaker; when the
// primary is unavailable, entries land in a local BadgerDB spool and a
// supervised replay loop drains them back once the store recovers. Whether a
// business write may proceed while its audit entry sits only in the spool is
// the fail-open/fail-closed configuration decision; the default is
// fail-closed.
package audit
