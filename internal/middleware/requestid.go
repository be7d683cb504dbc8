// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vallum-project/vallum/internal/logging"
)

// RequestIDHeader carries the request id to and from clients and proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, honoring one supplied by an
// upstream proxy, and threads it through the response header and the
// logging context. The same id lands in audit entries, so a single request
// can be traced from access log to audit trail.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
