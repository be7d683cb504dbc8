// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package scoped

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/logging"
	"github.com/vallum-project/vallum/internal/metrics"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// ErrEntityNotFound is returned when no record with the given id exists in
// the handle's bound schema. A record that exists in another tenant's
// schema is indistinguishable from one that does not exist at all.
var ErrEntityNotFound = errors.New("entity record not found")

// Record is one tenant-owned entity row: a uniform envelope of id plus a
// JSON document, so the isolation layer stays agnostic of business schema.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListOptions pages a List call.
type ListOptions struct {
	Limit  int
	Offset int
}

// Recorder is the audit surface the handle depends on. Satisfied by
// audit.Recorder.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry)
	RecordDurable(ctx context.Context, e audit.Entry) error
}

// Handle is a scoped data handle: all operations execute against the
// schema bound at construction, and nothing in its method set accepts a
// schema, organization, or context override. Request-scoped; never shared
// across requests.
type Handle struct {
	tc       *tenancy.Context
	db       *sql.DB
	catalog  *Catalog
	recorder Recorder
}

// NewHandle is the only constructor. The schema comes exclusively from the
// resolved tenant context; there is deliberately no constructor taking a
// raw schema string.
func NewHandle(tc *tenancy.Context, db *sql.DB, catalog *Catalog, recorder Recorder) *Handle {
	return &Handle{tc: tc, db: db, catalog: catalog, recorder: recorder}
}

// OrganizationID returns the organization the handle is bound to.
func (h *Handle) OrganizationID() string {
	return h.tc.OrganizationID()
}

// Find retrieves one record by id.
func (h *Handle) Find(ctx context.Context, entity string, id uuid.UUID) (*Record, error) {
	start := time.Now()
	if err := h.admit(ctx, entity, audit.KindRead, "find"); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s WHERE id = $1`, h.table(entity))
	var rec Record
	err := h.db.QueryRowContext(ctx, q, id).Scan(&rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordHandleOperation(entity, "find", "not_found", time.Since(start))
		return nil, ErrEntityNotFound
	}
	if err != nil {
		metrics.RecordHandleOperation(entity, "find", "error", time.Since(start))
		return nil, fmt.Errorf("find %s: %w", entity, err)
	}
	metrics.RecordHandleOperation(entity, "find", "ok", time.Since(start))
	return &rec, nil
}

// List retrieves records ordered by creation time, newest first.
func (h *Handle) List(ctx context.Context, entity string, opts ListOptions) ([]Record, error) {
	start := time.Now()
	if err := h.admit(ctx, entity, audit.KindRead, "list"); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s ORDER BY created_at DESC, id`, h.table(entity))
	args := []interface{}{}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordHandleOperation(entity, "list", "error", time.Since(start))
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			metrics.RecordHandleOperation(entity, "list", "error", time.Since(start))
			return nil, fmt.Errorf("list %s: %w", entity, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordHandleOperation(entity, "list", "error", time.Since(start))
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	metrics.RecordHandleOperation(entity, "list", "ok", time.Since(start))
	return out, nil
}

// Create inserts a record. A zero id is minted server-side.
func (h *Handle) Create(ctx context.Context, entity string, id uuid.UUID, data json.RawMessage) (*Record, error) {
	start := time.Now()
	if err := h.admit(ctx, entity, audit.KindWrite, "create"); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2) RETURNING id, data, created_at, updated_at`, h.table(entity))
	var rec Record
	if err := h.db.QueryRowContext(ctx, q, id, []byte(data)).
		Scan(&rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		metrics.RecordHandleOperation(entity, "create", "error", time.Since(start))
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}
	metrics.RecordHandleOperation(entity, "create", "ok", time.Since(start))
	return &rec, nil
}

// Update replaces a record's document.
func (h *Handle) Update(ctx context.Context, entity string, id uuid.UUID, data json.RawMessage) (*Record, error) {
	start := time.Now()
	if err := h.admit(ctx, entity, audit.KindWrite, "update"); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`UPDATE %s SET data = $2, updated_at = now() WHERE id = $1 RETURNING id, data, created_at, updated_at`, h.table(entity))
	var rec Record
	err := h.db.QueryRowContext(ctx, q, id, []byte(data)).
		Scan(&rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordHandleOperation(entity, "update", "not_found", time.Since(start))
		return nil, ErrEntityNotFound
	}
	if err != nil {
		metrics.RecordHandleOperation(entity, "update", "error", time.Since(start))
		return nil, fmt.Errorf("update %s: %w", entity, err)
	}
	metrics.RecordHandleOperation(entity, "update", "ok", time.Since(start))
	return &rec, nil
}

// Delete removes a record by id.
func (h *Handle) Delete(ctx context.Context, entity string, id uuid.UUID) error {
	start := time.Now()
	if err := h.admit(ctx, entity, audit.KindWrite, "delete"); err != nil {
		return err
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, h.table(entity))
	res, err := h.db.ExecContext(ctx, q, id)
	if err != nil {
		metrics.RecordHandleOperation(entity, "delete", "error", time.Since(start))
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		metrics.RecordHandleOperation(entity, "delete", "error", time.Since(start))
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if n == 0 {
		metrics.RecordHandleOperation(entity, "delete", "not_found", time.Since(start))
		return ErrEntityNotFound
	}
	metrics.RecordHandleOperation(entity, "delete", "ok", time.Since(start))
	return nil
}

// admit is the pre-execution gate shared by every operation: catalog check,
// then audit. Nothing reaches the store until both have passed, so neither
// a denial nor an unauditable write can leave a partial cross-tenant effect.
func (h *Handle) admit(ctx context.Context, entity string, kind audit.OperationKind, op string) error {
	entry := audit.ForContext(h.tc, logging.RequestIDFromContext(ctx))
	entry.EntityType = entity
	entry.Kind = kind
	entry.Operation = op

	if !h.catalog.IsTenantEntity(entity) {
		reason := "unknown entity type"
		if h.catalog.IsShared(entity) {
			reason = "entity is shared, not tenant-scoped"
		}
		entry.Allowed = false
		entry.DenialReason = reason

		// Denials are recorded durably regardless of kind; they are rare
		// and the denied operation has no store cost to amortize.
		if err := h.recorder.RecordDurable(ctx, entry); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("entity", entity).
				Msg("Failed to record denial audit entry")
		}
		metrics.RecordHandleOperation(entity, op, "denied", 0)
		logging.Ctx(ctx).Warn().
			Str("entity", entity).
			Str("operation", op).
			Str("org", h.tc.OrganizationID()).
			Str("reason", reason).
			Msg("Scoped handle rejected non-tenant entity")
		return fmt.Errorf("%s: %w", entity, tenancy.ErrNotATenantEntity)
	}

	entry.Allowed = true
	if h.tc.CrossTenant() {
		metrics.RecordCrossTenantAccess()
	}

	if kind == audit.KindWrite {
		// Durable-before-write ordering: if the trail cannot be recorded
		// under the configured policy, the write does not happen.
		if err := h.recorder.RecordDurable(ctx, entry); err != nil {
			metrics.RecordHandleOperation(entity, op, "denied", 0)
			return err
		}
		return nil
	}
	h.recorder.Record(ctx, entry)
	return nil
}

// table renders the schema-qualified, quoted table identifier. The schema
// name comes from the registry via the bound context and the entity name
// has passed the catalog, but both still go through pgx.Identifier rather
// than raw interpolation.
func (h *Handle) table(entity string) string {
	return pgx.Identifier{h.tc.SchemaName(), entity}.Sanitize()
}
