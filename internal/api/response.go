// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/registry"
	"github.com/vallum-project/vallum/internal/scoped"
	"github.com/vallum-project/vallum/internal/tenancy"
	"github.com/vallum-project/vallum/internal/validation"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta holds list pagination for collection endpoints.
type APIMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &APIResponse{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, r *http.Request, data interface{}, meta *APIMeta) {
	respondJSON(w, r, http.StatusOK, &APIResponse{Success: true, Data: data, Meta: meta})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

func respondValidationError(w http.ResponseWriter, r *http.Request, ve *validation.RequestValidationError) {
	respondJSON(w, r, http.StatusBadRequest, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      "validation_failed",
			Message:   "request validation failed",
			Details:   ve.Fields(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondDomainError maps domain sentinels to HTTP statuses. Unknown
// organizations deliberately map to the same generic 404 as missing records
// so that probing the surface cannot enumerate which organizations exist.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.RequestValidationError
	switch {
	case errors.Is(err, tenancy.ErrUnauthenticated) || errors.Is(err, authn.ErrNoCredentials):
		respondError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, authn.ErrExpiredCredentials):
		respondError(w, r, http.StatusUnauthorized, "unauthenticated", "credentials expired")
	case errors.Is(err, authn.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
	case errors.Is(err, tenancy.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, tenancy.ErrUnknownOrganization):
		respondError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, scoped.ErrEntityNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, audit.ErrEntryNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, tenancy.ErrNotATenantEntity):
		respondError(w, r, http.StatusBadRequest, "not_a_tenant_entity", "entity is not tenant-scoped")
	case errors.Is(err, tenancy.ErrAuditDegraded):
		respondError(w, r, http.StatusServiceUnavailable, "audit_degraded", "audit trail unavailable, write refused")
	case errors.Is(err, registry.ErrSchemaAlreadyExists):
		respondError(w, r, http.StatusConflict, "conflict", "conflicting schema mapping already exists")
	case errors.As(err, &ve):
		respondValidationError(w, r, ve)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Unhandled request error")
		respondError(w, r, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decodeJSON reads a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
