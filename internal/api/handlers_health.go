// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// handleHealthz is the liveness probe: 200 whenever the process is up,
// regardless of dependency health.
//
// @Summary Liveness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse "Process is alive"
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}

// handleReadyz is the readiness probe: the database must answer a ping and
// the caller-supplied readiness check must pass before traffic is admitted.
//
// @Summary Readiness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse "Ready to serve traffic"
// @Failure 503 {object} APIResponse "A dependency is unavailable"
// @Router /readyz [get]
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
	}
	if s.ready != nil {
		if err := s.ready(); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	respondData(w, r, http.StatusOK, healthResponse{Status: "ready", Version: s.version})
}
