// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vallum-project/vallum/internal/audit"
	"github.com/vallum-project/vallum/internal/authn"
	"github.com/vallum-project/vallum/internal/authz"
	"github.com/vallum-project/vallum/internal/registry"
	"github.com/vallum-project/vallum/internal/scoped"
	"github.com/vallum-project/vallum/internal/tenancy"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	handler http.Handler
	mock    sqlmock.Sqlmock
	store   *audit.MemoryStore
	reg     *registry.MemoryRegistry
	tokens  *authn.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg := registry.NewMemoryRegistry()
	for org, schema := range map[string]string{
		"org_acme":   "t_acme",
		"org_globex": "t_globex",
	} {
		if err := reg.Register(context.Background(), org, schema); err != nil {
			t.Fatalf("Register(%s) error = %v", org, err)
		}
	}

	catalog, err := scoped.NewCatalog([]string{"campaigns", "listings"}, []string{"currencies"})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	store := audit.NewMemoryStore(0)
	recorder := audit.NewRecorder(store, nil, audit.DefaultConfig())
	t.Cleanup(func() { _ = recorder.Close() })

	tokens, err := authn.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.Config{})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}

	srv := NewServer(Options{
		Resolver:    tenancy.NewResolver(reg),
		Registry:    reg,
		Provisioner: registry.NewProvisioner(reg, db, catalog.TenantEntities()),
		DB:          db,
		Catalog:     catalog,
		Recorder:    recorder,
		Auth:        authn.NewChain(authn.NewJWTAuthenticator(tokens)),
		Enforcer:    enforcer,
		Version:     "test",
	})

	return &testServer{
		handler: srv.Handler(),
		mock:    mock,
		store:   store,
		reg:     reg,
		tokens:  tokens,
	}
}

func (ts *testServer) token(t *testing.T, role tenancy.Role, org string) string {
	t.Helper()
	tok, err := ts.tokens.Issue(tenancy.Principal{
		UserID:         "u-" + role.String(),
		Role:           role,
		OrganizationID: org,
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token, orgHeader string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if orgHeader != "" {
		req.Header.Set(authn.OrgHeader, orgHeader)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, w.Body.String())
	}
	return resp
}

func TestHealthzAlwaysOK(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/healthz", "", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestReadyzPingsDatabase(t *testing.T) {
	ts := newTestServer(t)
	ts.mock.ExpectPing()
	w := ts.do(t, http.MethodGet, "/readyz", "", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /readyz = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
}

func TestUnauthenticatedRequestsGet401(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{
		"/api/v1/entities/campaigns",
		"/api/v1/audit/entries",
		"/api/v1/orgs",
	} {
		w := ts.do(t, http.MethodGet, path, "", "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without credentials = %d, want 401", path, w.Code)
		}
	}
}

func TestSellerCannotReachOrgOrAuditRoutes(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")

	for _, path := range []string{"/api/v1/orgs", "/api/v1/audit/entries", "/api/v1/audit/stats"} {
		w := ts.do(t, http.MethodGet, path, tok, "", "")
		if w.Code != http.StatusForbidden {
			t.Errorf("GET %s as seller = %d, want 403", path, w.Code)
		}
	}
}

func TestProvisionOrgCreatesSchemaAndMapping(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleAdmin, "org_acme")

	ts.mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	ts.mock.ExpectExec(`CREATE TABLE IF NOT EXISTS .*campaigns`).WillReturnResult(sqlmock.NewResult(0, 0))
	ts.mock.ExpectExec(`CREATE TABLE IF NOT EXISTS .*listings`).WillReturnResult(sqlmock.NewResult(0, 0))

	w := ts.do(t, http.MethodPost, "/api/v1/orgs", tok, "", `{"org_id":"org_new"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /orgs = %d, want 201\nbody: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	schema, _ := data["schema_name"].(string)
	if schema == "" {
		t.Fatal("schema_name missing from response")
	}
	if strings.Contains(schema, "org_new") {
		t.Errorf("schema %q derived from org id", schema)
	}

	got, err := ts.reg.SchemaFor(context.Background(), "org_new")
	if err != nil || got != schema {
		t.Errorf("SchemaFor(org_new) = %q, %v; want %q", got, err, schema)
	}
}

func TestProvisionOrgRejectsInvalidID(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleAdmin, "org_acme")

	w := ts.do(t, http.MethodPost, "/api/v1/orgs", tok, "", `{"org_id":"bad;DROP TABLE"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /orgs with hostile id = %d, want 400", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "validation_failed" {
		t.Errorf("error = %+v, want validation_failed", resp.Error)
	}
}

func TestProvisionOrgRequiresMasterForDelete(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, tenancy.RoleAdmin, "org_acme")

	w := ts.do(t, http.MethodDelete, "/api/v1/orgs/org_globex", admin, "", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("DELETE /orgs as admin = %d, want 403", w.Code)
	}
}

func TestOffboardOrgDropsSchema(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")

	ts.mock.ExpectExec(`DROP SCHEMA IF EXISTS "t_globex" CASCADE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := ts.do(t, http.MethodDelete, "/api/v1/orgs/org_globex", tok, "", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /orgs/org_globex = %d, want 204\nbody: %s", w.Code, w.Body.String())
	}
	if _, err := ts.reg.SchemaFor(context.Background(), "org_globex"); err == nil {
		t.Error("mapping still present after offboard")
	}
}

func TestGetOrgUnknownIs404(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleAdmin, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/orgs/org_ghost", tok, "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /orgs/org_ghost = %d, want 404", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Message != "not found" {
		t.Errorf("error = %+v, want generic not found", resp.Error)
	}
}

func TestEntitiesUnknownOrgIs404WithoutQueries(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")

	// No sqlmock expectations are registered: any statement would fail the
	// ExpectationsWereMet check below.
	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns", tok, "org_ghost", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /entities for unknown org = %d, want 404", w.Code)
	}
	if err := ts.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("statements issued for unknown org: %v", err)
	}
	entries, err := ts.store.Query(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query audit store: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("unknown org produced %d audit entries, want 0", len(entries))
	}
}

func TestCatalogListsEntityTypes(t *testing.T) {
	ts := newTestServer(t)

	seller := ts.token(t, tenancy.RoleSeller, "org_acme")
	if w := ts.do(t, http.MethodGet, "/api/v1/catalog", seller, "", ""); w.Code != http.StatusForbidden {
		t.Fatalf("GET /catalog as seller = %d, want 403", w.Code)
	}

	admin := ts.token(t, tenancy.RoleAdmin, "org_acme")
	w := ts.do(t, http.MethodGet, "/api/v1/catalog", admin, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /catalog = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	var cat catalogResponse
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, &cat); err != nil {
		t.Fatalf("unmarshal catalog: %v", err)
	}
	if len(cat.TenantEntities) == 0 || len(cat.SharedEntities) == 0 {
		t.Errorf("catalog = %+v, want both entity lists populated", cat)
	}
}

func TestListEntitiesScopedToHomeOrg(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")
	id := uuid.New()
	now := time.Now()

	ts.mock.ExpectQuery(`SELECT id, data, created_at, updated_at FROM "t_acme"\."campaigns"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow(id.String(), []byte(`{"name":"spring"}`), now, now))

	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns", tok, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /entities/campaigns = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Meta == nil || resp.Meta.Count != 1 {
		t.Errorf("meta = %+v, want count 1", resp.Meta)
	}
}

func TestSellerCannotRequestForeignOrg(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns", tok, "org_globex", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign org request as seller = %d, want 403", w.Code)
	}

	// Denial happens at resolution, before any loggable data access.
	entries, err := ts.store.Query(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query audit store: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("resolver denial produced %d audit entries, want 0", len(entries))
	}
}

func TestMasterCrossTenantReadUsesRequestedSchema(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")
	id := uuid.New()
	now := time.Now()

	ts.mock.ExpectQuery(`SELECT id, data, created_at, updated_at FROM "t_globex"\."campaigns" WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow(id.String(), []byte(`{}`), now, now))

	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns/"+id.String(), tok, "org_globex", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cross-tenant GET = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
}

func TestCreateEntityRecordsAudit(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")
	now := time.Now()

	ts.mock.ExpectQuery(`INSERT INTO "t_acme"\."campaigns"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), []byte(`{"name":"spring"}`), now, now))

	w := ts.do(t, http.MethodPost, "/api/v1/entities/campaigns", tok, "", `{"data":{"name":"spring"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /entities/campaigns = %d, want 201\nbody: %s", w.Code, w.Body.String())
	}

	entries, err := ts.store.Query(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != audit.KindWrite || !e.Allowed || e.OrgID != "org_acme" {
		t.Errorf("entry = %+v, want allowed write for org_acme", e)
	}
}

func TestWriteToSharedEntityIs400(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")

	w := ts.do(t, http.MethodPost, "/api/v1/entities/currencies", tok, "", `{"data":{"code":"EUR"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST shared entity = %d, want 400\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "not_a_tenant_entity" {
		t.Errorf("error = %+v, want not_a_tenant_entity", resp.Error)
	}
}

func TestGetEntityNotFound(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")
	id := uuid.New()

	ts.mock.ExpectQuery(`SELECT id, data, created_at, updated_at FROM "t_acme"\."campaigns" WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}))

	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns/"+id.String(), tok, "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET missing record = %d, want 404\nbody: %s", w.Code, w.Body.String())
	}
}

func TestGetEntityRejectsMalformedID(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleSeller, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/entities/campaigns/not-a-uuid", tok, "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET with bad id = %d, want 400", w.Code)
	}
}

func seedAuditEntries(t *testing.T, ts *testServer) {
	t.Helper()
	for _, e := range []audit.Entry{
		{ActorUserID: "u1", ActorRole: tenancy.RoleSeller, HomeOrgID: "org_acme", OrgID: "org_acme",
			SchemaName: "t_acme", EntityType: "campaigns", Kind: audit.KindWrite, Operation: "create", Allowed: true},
		{ActorUserID: "u2", ActorRole: tenancy.RoleSeller, HomeOrgID: "org_globex", OrgID: "org_globex",
			SchemaName: "t_globex", EntityType: "listings", Kind: audit.KindRead, Operation: "list", Allowed: true},
		{ActorUserID: "u3", ActorRole: tenancy.RoleMaster, HomeOrgID: "org_acme", OrgID: "org_globex",
			SchemaName: "t_globex", EntityType: "campaigns", Kind: audit.KindRead, Operation: "find",
			Allowed: true, CrossTenant: true},
	} {
		stamped := audit.NewEntry(e)
		if err := ts.store.Save(context.Background(), &stamped); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestAuditEntriesScopedToAuditorOrg(t *testing.T) {
	ts := newTestServer(t)
	seedAuditEntries(t, ts)
	tok := ts.token(t, tenancy.RoleAuditor, "org_acme")

	// The org filter is ignored for non-master callers.
	w := ts.do(t, http.MethodGet, "/api/v1/audit/entries?org=org_globex", tok, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /audit/entries = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Meta == nil || resp.Meta.Count != 1 {
		t.Fatalf("meta = %+v, want exactly the org_acme entry", resp.Meta)
	}
}

func TestAuditEntriesMasterSeesAll(t *testing.T) {
	ts := newTestServer(t)
	seedAuditEntries(t, ts)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/audit/entries", tok, "", "")
	resp := decodeResponse(t, w)
	if resp.Meta == nil || resp.Meta.Count != 3 {
		t.Fatalf("meta = %+v, want all 3 entries", resp.Meta)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/audit/entries?cross_tenant=true", tok, "", "")
	resp = decodeResponse(t, w)
	if resp.Meta == nil || resp.Meta.Count != 1 {
		t.Fatalf("meta = %+v, want only the cross-tenant entry", resp.Meta)
	}
}

func TestAuditEntryForeignOrgIsHidden(t *testing.T) {
	ts := newTestServer(t)
	seedAuditEntries(t, ts)

	entries, err := ts.store.Query(context.Background(), audit.QueryFilter{OrgID: "org_globex", CrossTenant: boolPtr(false)})
	if err != nil || len(entries) == 0 {
		t.Fatalf("seed lookup failed: %v", err)
	}
	foreign := entries[0].ID

	tok := ts.token(t, tenancy.RoleAuditor, "org_acme")
	w := ts.do(t, http.MethodGet, "/api/v1/audit/entries/"+foreign, tok, "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET foreign audit entry = %d, want 404", w.Code)
	}
}

func TestAuditStats(t *testing.T) {
	ts := newTestServer(t)
	seedAuditEntries(t, ts)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/audit/stats", tok, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /audit/stats = %d, want 200", w.Code)
	}
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	if total, _ := data["total"].(float64); total != 3 {
		t.Errorf("total = %v, want 3", data["total"])
	}
}

func TestAuditExportFormats(t *testing.T) {
	ts := newTestServer(t)
	seedAuditEntries(t, ts)
	tok := ts.token(t, tenancy.RoleMaster, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/audit/export?format=json", tok, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export json = %d, want 200", w.Code)
	}
	if got := len(strings.Split(strings.TrimSpace(w.Body.String()), "\n")); got != 3 {
		t.Errorf("json export lines = %d, want 3", got)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/audit/export?format=cef", tok, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export cef = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "CEF:0|") {
		t.Errorf("cef export missing CEF header: %s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/audit/export?format=xml", tok, "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("export xml = %d, want 400", w.Code)
	}
}

func TestAuditFilterRejectsMalformedTimes(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, tenancy.RoleAuditor, "org_acme")

	w := ts.do(t, http.MethodGet, "/api/v1/audit/entries?from=yesterday", tok, "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad time filter = %d, want 400", w.Code)
	}
}

func boolPtr(b bool) *bool { return &b }
