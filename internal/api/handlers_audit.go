// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/tenancy"
	"github.com/vallum-project/vallum/internal/websocket"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
	maxExportEntries  = 100000
)

// parseAuditFilter builds a query filter from the request, then clamps it
// to the caller's organization. Only master sees entries across
// organizations; everyone else reviews their own org regardless of what
// the query asks for.
func parseAuditFilter(r *http.Request, tc *tenancy.Context) (audit.QueryFilter, error) {
	q := r.URL.Query()
	f := audit.QueryFilter{Limit: defaultAuditLimit}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadTimeFilter
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadTimeFilter
		}
		f.To = t
	}
	f.ActorUserID = q.Get("actor")
	f.EntityType = q.Get("entity")
	if v := q.Get("kind"); v != "" {
		switch audit.OperationKind(v) {
		case audit.KindRead, audit.KindWrite:
			f.Kind = audit.OperationKind(v)
		default:
			return f, errBadKindFilter
		}
	}
	if v := q.Get("allowed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errBadBoolFilter
		}
		f.Allowed = &b
	}
	if v := q.Get("cross_tenant"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errBadBoolFilter
		}
		f.CrossTenant = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAuditLimit {
			return f, errBadLimit
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errBadOffset
		}
		f.Offset = n
	}

	if tc.Role().IsMaster() {
		f.OrgID = q.Get("org")
	} else {
		f.OrgID = tc.HomeOrganizationID()
	}
	return f, nil
}

// handleAuditEntries lists audit entries matching the query filters.
//
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param actor query string false "Actor user id"
// @Param org query string false "Organization id (master only)"
// @Param entity query string false "Entity type"
// @Param kind query string false "Operation kind (read|write)"
// @Param allowed query bool false "Decision outcome"
// @Param cross_tenant query bool false "Cross-tenant accesses only"
// @Param limit query int false "Page size (max 1000)"
// @Param offset query int false "Page offset"
// @Success 200 {object} APIResponse "Matching entries"
// @Router /api/v1/audit/entries [get]
func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	tc, err := s.resolve(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	f, err := parseAuditFilter(r, tc)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	entries, err := s.recorder.Query(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondList(w, r, entries, &APIMeta{Count: len(entries), Limit: f.Limit, Offset: f.Offset})
}

// handleAuditEntry fetches a single entry by id. Non-master callers only
// see entries for their own organization.
//
// @Summary Get an audit entry
// @Tags Audit
// @Produce json
// @Param id path string true "Entry id (ULID)"
// @Success 200 {object} APIResponse "Entry"
// @Failure 404 {object} APIResponse "No such entry"
// @Router /api/v1/audit/entries/{id} [get]
func (s *Server) handleAuditEntry(w http.ResponseWriter, r *http.Request) {
	tc, err := s.resolve(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	entry, err := s.recorder.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !tc.Role().IsMaster() && entry.OrgID != tc.HomeOrganizationID() {
		respondError(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}
	respondData(w, r, http.StatusOK, entry)
}

// handleAuditStats summarizes the log for the review surface.
//
// @Summary Audit statistics
// @Tags Audit
// @Produce json
// @Success 200 {object} APIResponse "Aggregate counts"
// @Router /api/v1/audit/stats [get]
func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	tc, err := s.resolve(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	f, err := parseAuditFilter(r, tc)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	f.Limit = 0
	f.Offset = 0

	stats, err := s.recorder.Stats(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, stats)
}

// handleAuditExport streams matching entries as JSON lines or CEF.
//
// @Summary Export audit entries
// @Tags Audit
// @Produce json
// @Param format query string false "Export format (json|cef), default json"
// @Success 200 "Exported entries"
// @Router /api/v1/audit/export [get]
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	tc, err := s.resolve(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	f, err := parseAuditFilter(r, tc)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	f.Limit = maxExportEntries
	f.Offset = 0

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	entries, err := s.recorder.Query(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.jsonl"`)
		err = audit.ExportJSON(w, entries)
	case "cef":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.cef"`)
		err = audit.ExportCEF(w, entries, s.version)
	default:
		respondError(w, r, http.StatusBadRequest, "invalid_query", "format must be json or cef")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("format", format).Msg("Audit export failed")
	}
}

// handleAuditTail upgrades to a websocket and streams entries as they are
// recorded. Non-master clients are pinned to their own organization's
// entries; master may narrow to one organization with the org header or
// receive everything by omitting it.
//
// @Summary Live audit tail
// @Tags Audit
// @Success 101 "Switching protocols"
// @Router /api/v1/audit/tail [get]
func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, "tail_unavailable", "live tail is not enabled")
		return
	}
	tc, err := s.resolve(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	orgFilter := tc.HomeOrganizationID()
	if tc.Role().IsMaster() {
		orgFilter = authn.RequestedOrg(r)
	}
	if err := websocket.Serve(s.hub, w, r, orgFilter); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Audit tail upgrade failed")
	}
}
