// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/validation"
)

type provisionOrgRequest struct {
	OrgID string `json:"org_id" validate:"required,org_id"`
}

type orgResponse struct {
	OrgID      string `json:"org_id"`
	SchemaName string `json:"schema_name"`
}

// handleProvisionOrg onboards an organization: it mints a schema name,
// registers the mapping, and creates the schema with one table per tenant
// entity. The schema name is never derived from the organization id.
//
// @Summary Provision an organization
// @Tags Orgs
// @Accept json
// @Produce json
// @Param request body provisionOrgRequest true "Organization to provision"
// @Success 201 {object} APIResponse "Organization provisioned"
// @Failure 409 {object} APIResponse "Conflicting mapping"
// @Router /api/v1/orgs [post]
func (s *Server) handleProvisionOrg(w http.ResponseWriter, r *http.Request) {
	var req provisionOrgRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondValidationError(w, r, ve)
		return
	}

	schema, err := s.provisioner.Provision(r.Context(), req.OrgID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("org_id", req.OrgID).
		Str("schema", schema).
		Msg("Organization provisioned")
	respondData(w, r, http.StatusCreated, orgResponse{OrgID: req.OrgID, SchemaName: schema})
}

// handleOffboardOrg removes the mapping first, so new resolutions fail
// closed before the schema is dropped.
//
// @Summary Offboard an organization
// @Tags Orgs
// @Produce json
// @Param orgID path string true "Organization id"
// @Success 204 "Organization offboarded"
// @Router /api/v1/orgs/{orgID} [delete]
func (s *Server) handleOffboardOrg(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if err := s.provisioner.Offboard(r.Context(), orgID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("org_id", orgID).Msg("Organization offboarded")
	w.WriteHeader(http.StatusNoContent)
}

// handleGetOrg reports whether a mapping exists for the organization.
//
// @Summary Get organization mapping
// @Tags Orgs
// @Produce json
// @Param orgID path string true "Organization id"
// @Success 200 {object} APIResponse "Mapping found"
// @Failure 404 {object} APIResponse "No such organization"
// @Router /api/v1/orgs/{orgID} [get]
func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	schema, err := s.registry.SchemaFor(r.Context(), orgID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, orgResponse{OrgID: orgID, SchemaName: schema})
}

// handleListOrgs lists all registered mappings.
//
// @Summary List organizations
// @Tags Orgs
// @Produce json
// @Success 200 {object} APIResponse "All registered mappings"
// @Router /api/v1/orgs [get]
func (s *Server) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.registry.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondList(w, r, mappings, &APIMeta{Count: len(mappings)})
}
