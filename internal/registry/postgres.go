// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vallum-project/vallum/internal/metrics"
	"github.com/vallum-project/vallum/internal/tenancy"
)

// PostgresRegistry implements Registry over a Postgres connection pool
// (database/sql with the pgx stdlib driver). Concurrent registrations are
// serialized by the table's primary key and unique constraint: the insert
// uses ON CONFLICT DO NOTHING and then re-reads, so exactly one of two
// racing registrations creates the row and both observe a consistent
// outcome.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry creates a registry over the given pool. The caller
// owns the pool's lifecycle.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Migrate creates the admin schema and mapping table if absent. Idempotent;
// called once at startup.
func (r *PostgresRegistry) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS vallum_admin`,
		`CREATE TABLE IF NOT EXISTS vallum_admin.organization_schemas (
			org_id      TEXT PRIMARY KEY,
			schema_name TEXT UNIQUE NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate registry: %w", err)
		}
	}
	return nil
}

// SchemaFor returns the schema mapped to the organization.
func (r *PostgresRegistry) SchemaFor(ctx context.Context, orgID string) (string, error) {
	var schema string
	err := r.db.QueryRowContext(ctx,
		`SELECT schema_name FROM vallum_admin.organization_schemas WHERE org_id = $1`,
		orgID,
	).Scan(&schema)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordRegistryLookup("miss")
		return "", tenancy.ErrUnknownOrganization
	}
	if err != nil {
		metrics.RecordRegistryLookup("error")
		return "", fmt.Errorf("lookup schema for %s: %w", orgID, err)
	}
	metrics.RecordRegistryLookup("hit")
	return schema, nil
}

// Register creates the mapping. The insert is races-safe: ON CONFLICT DO
// NOTHING leaves exactly one winner, and the follow-up read distinguishes
// idempotent success from a conflicting pair.
func (r *PostgresRegistry) Register(ctx context.Context, orgID, schemaName string) error {
	if err := ValidateOrgID(orgID); err != nil {
		metrics.RecordRegistration("error")
		return err
	}
	if err := ValidateSchemaName(schemaName); err != nil {
		metrics.RecordRegistration("error")
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vallum_admin.organization_schemas (org_id, schema_name)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		orgID, schemaName,
	)
	if err != nil {
		metrics.RecordRegistration("error")
		return fmt.Errorf("register %s: %w", orgID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		metrics.RecordRegistration("error")
		return fmt.Errorf("register %s: %w", orgID, err)
	}
	if inserted == 1 {
		metrics.RecordRegistration("created")
		return nil
	}

	// Nothing inserted: either the identical mapping already exists
	// (idempotent success) or one side of the pair is claimed differently.
	existing, err := r.SchemaFor(ctx, orgID)
	if err == nil && existing == schemaName {
		metrics.RecordRegistration("idempotent")
		return nil
	}
	metrics.RecordRegistration("conflict")
	return fmt.Errorf("register %s as %s: %w", orgID, schemaName, ErrSchemaAlreadyExists)
}

// Exists reports whether the organization has a mapping.
func (r *PostgresRegistry) Exists(ctx context.Context, orgID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM vallum_admin.organization_schemas WHERE org_id = $1`,
		orgID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check organization %s: %w", orgID, err)
	}
	return true, nil
}

// Deregister removes the mapping. A missing mapping is not an error.
func (r *PostgresRegistry) Deregister(ctx context.Context, orgID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM vallum_admin.organization_schemas WHERE org_id = $1`,
		orgID,
	); err != nil {
		return fmt.Errorf("deregister %s: %w", orgID, err)
	}
	return nil
}

// List returns all mappings ordered by organization id.
func (r *PostgresRegistry) List(ctx context.Context) ([]Mapping, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT org_id, schema_name, created_at
		 FROM vallum_admin.organization_schemas
		 ORDER BY org_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.OrgID, &m.SchemaName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return out, nil
}
