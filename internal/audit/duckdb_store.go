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
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/vallum-project/vallum/internal/logging"
)

// DuckDBStore implements Store over an embedded DuckDB database, for
// single-node deployments that want a durable log without an external
// Postgres. DuckDB allows one writer, so Save is serialized by a mutex;
// reads share the lock in read mode.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenDuckDBStore opens (or creates) a DuckDB-backed store at path. An
// empty path opens an in-memory database.
func OpenDuckDBStore(path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb audit store: %w", err)
	}
	s := &DuckDBStore{db: db}
	if err := s.createTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Info().Str("path", path).Msg("DuckDB audit store opened")
	return s, nil
}

// Close releases the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

func (s *DuckDBStore) createTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS audit_entries (
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
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries(ts);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries(actor_user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_org ON audit_entries(org_id);
	`
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create audit table: %w", err)
		}
	}
	return nil
}

// Save inserts the entry; duplicate ids are ignored so replay is safe.
func (s *DuckDBStore) Save(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("nil audit entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO audit_entries
			(id, ts, actor_user_id, actor_role, home_org_id, org_id, schema_name,
			 entity_type, kind, operation, allowed, denial_reason, cross_tenant, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, duckSelectColumns+` FROM audit_entries WHERE id = ?`, id)
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
func (s *DuckDBStore) Query(ctx context.Context, f QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildDuckWhere(f)
	q := duckSelectColumns + ` FROM audit_entries` + where + ` ORDER BY ts DESC, id DESC`
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
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
func (s *DuckDBStore) Count(ctx context.Context, f QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildDuckWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

// Stats aggregates matching entries.
func (s *DuckDBStore) Stats(ctx context.Context, f QueryFilter) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildDuckWhere(f)
	st := &Stats{ByEntity: make(map[string]int64), ByOrg: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE allowed),
		        COUNT(*) FILTER (WHERE NOT allowed),
		        COUNT(*) FILTER (WHERE cross_tenant)
		 FROM audit_entries`+where, args...,
	).Scan(&st.Total, &st.Allowed, &st.Denied, &st.CrossTenant)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	for column, dest := range map[string]map[string]int64{
		"entity_type": st.ByEntity,
		"org_id":      st.ByOrg,
	} {
		q := fmt.Sprintf(`SELECT %s, COUNT(*) FROM audit_entries%s GROUP BY %s`, column, where, column)
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("audit stats by %s: %w", column, err)
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("audit stats by %s: %w", column, err)
			}
			dest[key] = count
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("audit stats by %s: %w", column, err)
		}
		_ = rows.Close()
	}
	return st, nil
}

const duckSelectColumns = `SELECT id, ts, actor_user_id, actor_role, home_org_id, org_id,
	schema_name, entity_type, kind, operation, allowed, denial_reason, cross_tenant, request_id`

// buildDuckWhere mirrors buildWhere with DuckDB's ? placeholders.
func buildDuckWhere(f QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		conds = append(conds, cond)
		args = append(args, val)
	}

	if !f.From.IsZero() {
		add("ts >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("ts <= ?", f.To)
	}
	if f.ActorUserID != "" {
		add("actor_user_id = ?", f.ActorUserID)
	}
	if f.OrgID != "" {
		add("org_id = ?", f.OrgID)
	}
	if f.EntityType != "" {
		add("entity_type = ?", f.EntityType)
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.Allowed != nil {
		add("allowed = ?", *f.Allowed)
	}
	if f.CrossTenant != nil {
		add("cross_tenant = ?", *f.CrossTenant)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
