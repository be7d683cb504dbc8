// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vallum-project/vallum/internal/scoped"
	"github.com/vallum-project/vallum/internal/validation"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var (
	errBadLimit      = errors.New("limit must be an integer between 1 and 1000")
	errBadOffset     = errors.New("offset must be a non-negative integer")
	errBadTimeFilter = errors.New("time filters must be RFC3339 timestamps")
	errBadKindFilter = errors.New("kind must be read or write")
	errBadBoolFilter = errors.New("boolean filters must be true or false")
)

type entityRequest struct {
	ID   string          `json:"id,omitempty" validate:"omitempty,uuid"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// handle resolves the tenant context and constructs the scoped data handle
// for this request. Every entity endpoint goes through it; the handle is
// the only path to tenant data.
func (s *Server) handle(r *http.Request) (*scoped.Handle, error) {
	tc, err := s.resolve(r)
	if err != nil {
		return nil, err
	}
	return scoped.NewHandle(tc, s.db, s.catalog, s.recorder), nil
}

func (s *Server) sharedReader(r *http.Request) (*scoped.SharedReader, error) {
	tc, err := s.resolve(r)
	if err != nil {
		return nil, err
	}
	return scoped.NewSharedReader(tc, s.db, s.catalog, s.recorder), nil
}

func parseListOptions(r *http.Request) (scoped.ListOptions, error) {
	opts := scoped.ListOptions{Limit: defaultListLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return opts, errBadLimit
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errBadOffset
		}
		opts.Offset = n
	}
	return opts, nil
}

// handleListEntities lists records of one entity type. Shared entities are
// read through the row-filtered shared reader; tenant entities through the
// schema-scoped handle.
//
// @Summary List entity records
// @Tags Entities
// @Produce json
// @Param type path string true "Entity type"
// @Param limit query int false "Page size (max 1000)"
// @Param offset query int false "Page offset"
// @Success 200 {object} APIResponse "Records for the resolved organization"
// @Router /api/v1/entities/{type} [get]
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "type")
	opts, err := parseListOptions(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	if s.catalog.IsShared(entity) {
		reader, err := s.sharedReader(r)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		records, err := reader.List(r.Context(), entity, opts)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		respondList(w, r, records, &APIMeta{Count: len(records), Limit: opts.Limit, Offset: opts.Offset})
		return
	}

	h, err := s.handle(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	records, err := h.List(r.Context(), entity, opts)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondList(w, r, records, &APIMeta{Count: len(records), Limit: opts.Limit, Offset: opts.Offset})
}

// handleCreateEntity inserts one record into the resolved organization's
// schema. The record id may be supplied for idempotent creation; otherwise
// one is generated.
//
// @Summary Create an entity record
// @Tags Entities
// @Accept json
// @Produce json
// @Param type path string true "Entity type"
// @Param request body entityRequest true "Record to create"
// @Success 201 {object} APIResponse "Created record"
// @Failure 400 {object} APIResponse "Not a tenant entity"
// @Failure 503 {object} APIResponse "Audit trail unavailable"
// @Router /api/v1/entities/{type} [post]
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "type")
	var req entityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondValidationError(w, r, ve)
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_id", "id is not a valid UUID")
			return
		}
		id = parsed
	}

	h, err := s.handle(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	record, err := h.Create(r.Context(), entity, id, req.Data)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, record)
}

// handleGetEntity fetches one record by id.
//
// @Summary Get an entity record
// @Tags Entities
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Record id"
// @Success 200 {object} APIResponse "Record"
// @Failure 404 {object} APIResponse "No such record"
// @Router /api/v1/entities/{type}/{id} [get]
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "type")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_id", "id is not a valid UUID")
		return
	}

	if s.catalog.IsShared(entity) {
		reader, err := s.sharedReader(r)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		record, err := reader.Find(r.Context(), entity, id)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		respondData(w, r, http.StatusOK, record)
		return
	}

	h, err := s.handle(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	record, err := h.Find(r.Context(), entity, id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, record)
}

// handleUpdateEntity replaces the document of an existing record.
//
// @Summary Update an entity record
// @Tags Entities
// @Accept json
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Record id"
// @Param request body entityRequest true "New document"
// @Success 200 {object} APIResponse "Updated record"
// @Failure 404 {object} APIResponse "No such record"
// @Router /api/v1/entities/{type}/{id} [put]
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "type")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_id", "id is not a valid UUID")
		return
	}
	var req entityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		respondValidationError(w, r, ve)
		return
	}

	h, err := s.handle(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	record, err := h.Update(r.Context(), entity, id, req.Data)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, record)
}

type catalogResponse struct {
	TenantEntities []string `json:"tenant_entities"`
	SharedEntities []string `json:"shared_entities"`
}

// handleCatalog returns the configured entity catalog, so operators can see
// which entity types are tenant-partitioned and which are shared.
//
// @Summary Entity catalog
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse "Tenant-owned and shared entity types"
// @Router /api/v1/catalog [get]
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, catalogResponse{
		TenantEntities: s.catalog.TenantEntities(),
		SharedEntities: s.catalog.SharedEntities(),
	})
}

// handleDeleteEntity removes one record.
//
// @Summary Delete an entity record
// @Tags Entities
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Record id"
// @Success 204 "Record deleted"
// @Failure 404 {object} APIResponse "No such record"
// @Router /api/v1/entities/{type}/{id} [delete]
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "type")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_id", "id is not a valid UUID")
		return
	}

	h, err := s.handle(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := h.Delete(r.Context(), entity, id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
