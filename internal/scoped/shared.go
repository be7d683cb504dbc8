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
	"github.com/vallum-project/vallum/internal/policy"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// SharedSchema is the schema holding intentionally shared tables, such as
// the global principal directory.
const SharedSchema = "vallum_shared"

// SharedRecord is one row of a shared table: the envelope plus the owning
// organization, which the row policies filter on.
type SharedRecord struct {
	ID        uuid.UUID       `json:"id"`
	OrgID     string          `json:"org_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// SharedReader is the non-tenant-scoped accessor for shared entities. It
// never touches tenant schemas; every read runs inside a row-level-security
// scoped session, so even here the store filters rows to the context's
// organization (with the explicit master bypass).
type SharedReader struct {
	tc       *tenancy.Context
	db       *sql.DB
	catalog  *Catalog
	recorder Recorder
}

// NewSharedReader constructs a reader bound to one tenant context, like
// the handle: no constructor accepts a raw organization id.
func NewSharedReader(tc *tenancy.Context, db *sql.DB, catalog *Catalog, recorder Recorder) *SharedReader {
	return &SharedReader{tc: tc, db: db, catalog: catalog, recorder: recorder}
}

// List returns the shared rows visible to the bound context. The RLS
// policies do the filtering; the query itself carries no org predicate, so
// the test of the backstop is honest.
func (r *SharedReader) List(ctx context.Context, entity string, opts ListOptions) ([]SharedRecord, error) {
	if err := r.admit(ctx, entity, "list"); err != nil {
		return nil, err
	}

	tx, err := policy.SessionScope(ctx, r.db, r.tc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`SELECT id, org_id, data, created_at FROM %s ORDER BY created_at DESC, id`,
		pgx.Identifier{SharedSchema, entity}.Sanitize())
	args := []interface{}{}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shared %s: %w", entity, err)
	}
	defer func() { _ = rows.Close() }()

	var out []SharedRecord
	for rows.Next() {
		var rec SharedRecord
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("list shared %s: %w", entity, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shared %s: %w", entity, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("list shared %s: %w", entity, err)
	}
	return out, nil
}

// Find retrieves one shared row by id. A row belonging to a foreign
// organization is filtered out by the policies and reads as not found.
func (r *SharedReader) Find(ctx context.Context, entity string, id uuid.UUID) (*SharedRecord, error) {
	if err := r.admit(ctx, entity, "find"); err != nil {
		return nil, err
	}

	tx, err := policy.SessionScope(ctx, r.db, r.tc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`SELECT id, org_id, data, created_at FROM %s WHERE id = $1`,
		pgx.Identifier{SharedSchema, entity}.Sanitize())
	var rec SharedRecord
	err = tx.QueryRowContext(ctx, q, id).Scan(&rec.ID, &rec.OrgID, &rec.Data, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find shared %s: %w", entity, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("find shared %s: %w", entity, err)
	}
	return &rec, nil
}

// admit rejects entities that are not declared shared and records the
// read-path audit entry.
func (r *SharedReader) admit(ctx context.Context, entity, op string) error {
	entry := audit.ForContext(r.tc, logging.RequestIDFromContext(ctx))
	entry.EntityType = entity
	entry.Kind = audit.KindRead
	entry.Operation = op

	if !r.catalog.IsShared(entity) {
		entry.Allowed = false
		entry.DenialReason = "entity is not a shared entity"
		if err := r.recorder.RecordDurable(ctx, entry); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("entity", entity).
				Msg("Failed to record denial audit entry")
		}
		return fmt.Errorf("shared accessor refused %s: %w", entity, tenancy.ErrNotATenantEntity)
	}

	entry.Allowed = true
	r.recorder.Record(ctx, entry)
	return nil
}
