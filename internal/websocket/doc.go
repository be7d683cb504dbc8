// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

// Package websocket implements the audit live tail: a hub that fans
// recorded audit entries out to connected review clients over WebSocket.
//
// Every client is bound to an organization filter at upgrade time, derived
// from its resolved tenant context by the API layer. A non-master client
// only ever receives entries for its own organization; the hub enforces
// the filter on every send, not just at subscription.
//
// The tail is an observability surface. Delivery is best-effort: a slow
// client is disconnected rather than allowed to apply backpressure to the
// recording path.
package websocket
