// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vallum-project/vallum/internal/tenancy"
)

// PostgresStore implements Store over an append-only Postgres table. The
// application role is granted INSERT and SELECT only; the absence of UPDATE
// and DELETE grants is part of the write-once contract.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit schema and entries table if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS vallum_audit`,
		`CREATE TABLE IF NOT EXISTS vallum_audit.entries (
			id            TEXT PRIMARY KEY,
			ts            TIMESTAMPTZ NOT NULL,
			actor_user_id TEXT NOT NULL,
			actor_role    TEXT NOT NULL,
			home_org_id   TEXT NOT NULL,
			org_id        TEXT NOT NULL,
			schema_name   TEXT NOT NULL,
			entity_type   TEXT NOT NULL,
			kind          TEXT NOT NULL,
			operation     TEXT NOT NULL,
			allowed       BOOLEAN NOT NULL,
			denial_reason TEXT NOT NULL DEFAULT '',
			cross_tenant  BOOLEAN NOT NULL,
			request_id    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON vallum_audit.entries (ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON vallum_audit.entries (actor_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_org ON vallum_audit.entries (org_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_cross_tenant ON vallum_audit.entries (cross_tenant) WHERE cross_tenant`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_denied ON vallum_audit.entries (allowed) WHERE NOT allowed`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit store: %w", err)
		}
	}
	return nil
}

// Save inserts the entry. ON CONFLICT DO NOTHING makes Save idempotent on
// id, which the spool replay loop depends on.
func (s *PostgresStore) Save(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("nil audit entry")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vallum_audit.entries
			(id, ts, actor_user_id, actor_role, home_org_id, org_id, schema_name,
			 entity_type, kind, operation, allowed, denial_reason, cross_tenant, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.ActorUserID, string(e.ActorRole), e.HomeOrgID, e.OrgID,
		e.SchemaName, e.EntityType, string(e.Kind), e.Operation, e.Allowed,
		e.DenialReason, e.CrossTenant, e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("save audit entry %s: %w", e.ID, err)
	}
	return nil
}

// Get retrieves an entry by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM vallum_audit.entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry %s: %w", id, err)
	}
	return e, nil
}

// Query returns matching entries, newest first.
func (s *PostgresStore) Query(ctx context.Context, f QueryFilter) ([]Entry, error) {
	where, args := buildWhere(f)
	q := selectColumns + ` FROM vallum_audit.entries` + where + ` ORDER BY ts DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	return out, nil
}

// Count returns the number of matching entries.
func (s *PostgresStore) Count(ctx context.Context, f QueryFilter) (int64, error) {
	where, args := buildWhere(f)
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vallum_audit.entries`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

// Stats aggregates matching entries in a single pass plus two group-bys.
func (s *PostgresStore) Stats(ctx context.Context, f QueryFilter) (*Stats, error) {
	where, args := buildWhere(f)

	st := &Stats{ByEntity: make(map[string]int64), ByOrg: make(map[string]int64)}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE allowed),
		        COUNT(*) FILTER (WHERE NOT allowed),
		        COUNT(*) FILTER (WHERE cross_tenant)
		 FROM vallum_audit.entries`+where, args...,
	).Scan(&st.Total, &st.Allowed, &st.Denied, &st.CrossTenant)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	for column, dest := range map[string]map[string]int64{
		"entity_type": st.ByEntity,
		"org_id":      st.ByOrg,
	} {
		if err := s.countBy(ctx, column, where, args, dest); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// countBy runs one GROUP BY aggregation into dest. column is one of the
// fixed names above, never caller input.
func (s *PostgresStore) countBy(ctx context.Context, column, where string, args []interface{}, dest map[string]int64) error {
	q := fmt.Sprintf(`SELECT %s, COUNT(*) FROM vallum_audit.entries%s GROUP BY %s`, column, where, column)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("audit stats by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("audit stats by %s: %w", column, err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("audit stats by %s: %w", column, err)
	}
	return nil
}

const selectColumns = `SELECT id, ts, actor_user_id, actor_role, home_org_id, org_id,
	schema_name, entity_type, kind, operation, allowed, denial_reason, cross_tenant, request_id`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var role, kind string
	var ts time.Time
	if err := row.Scan(&e.ID, &ts, &e.ActorUserID, &role, &e.HomeOrgID, &e.OrgID,
		&e.SchemaName, &e.EntityType, &kind, &e.Operation, &e.Allowed,
		&e.DenialReason, &e.CrossTenant, &e.RequestID); err != nil {
		return nil, err
	}
	e.Timestamp = ts
	e.ActorRole = tenancy.Role(role)
	e.Kind = OperationKind(kind)
	return &e, nil
}

// buildWhere assembles the WHERE clause for a filter with positional args.
func buildWhere(f QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("ts >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("ts <= $%d", f.To)
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if f.OrgID != "" {
		add("org_id = $%d", f.OrgID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Allowed != nil {
		add("allowed = $%d", *f.Allowed)
	}
	if f.CrossTenant != nil {
		add("cross_tenant = $%d", *f.CrossTenant)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
