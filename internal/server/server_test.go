package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/connector/sqlite"
	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	adminKey      = "bsn_admin_key"
	acmeKey       = "bsn_acme_key"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	conn    connector.Connector
	authSvc *service.AuthService
}

// newTestEnv creates a fresh test environment with an in-memory SQLite
// content store, two API keys and a fully wired Server.
func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()

	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Disconnect() })

	types, err := fieldtype.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewContentService(conn, types, logger)
	authSvc := service.NewAuthService(testJWTSecret,
		service.APIKey{Label: "admin", KeyHash: service.HashAPIKey(adminKey), UserID: "admin"},
		service.APIKey{Label: "acme", KeyHash: service.HashAPIKey(acmeKey), UserID: "acme-editor", Tenants: []string{"acme"}},
	)

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := New(cfg, conn, svc, authSvc, logger)

	return &testEnv{server: srv, conn: conn, authSvc: authSvc}
}

// do executes an HTTP request against the test server and returns the recorder.
// headers is an optional map of header key-value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes an HTTP request authenticated with a bearer token.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doAPIKey executes an HTTP request authenticated with an API key.
func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"X-API-Key": apiKey,
	})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("readyz = %+v", resp)
	}

	env.conn.Disconnect()
	rr = env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)
	decodeJSON(t, rr, &resp)
	if resp.Status != "degraded" || !strings.HasPrefix(resp.Checks["database"], "error: ") {
		t.Errorf("readyz after disconnect = %+v", resp)
	}
}

// ---------------------------------------------------------------------------
// Authentication and tenant scoping
// ---------------------------------------------------------------------------

func TestAPI_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	paths := []string{
		"/api/v1/field-types",
		"/api/v1/system/tenants",
		"/api/v1/acme/collections",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rr := env.do(t, "GET", p, nil, nil)
			assertStatus(t, rr, http.StatusUnauthorized)
			var resp struct {
				Data  []any  `json:"data"`
				Error string `json:"error"`
			}
			decodeJSON(t, rr, &resp)
			if resp.Error == "" || resp.Data == nil {
				t.Errorf("expected empty data and an error, got %+v", resp)
			}
		})
	}
}

func TestAPI_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAPIKey(t, "GET", "/api/v1/acme/collections", nil, "bsn_wrong")
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/v1/acme/collections", nil, "not-a-jwt")
	assertStatus(t, rr, http.StatusUnauthorized)

	expired, err := env.authSvc.IssueJWT(t.Context(), "u", nil, -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	rr = env.doAuth(t, "GET", "/api/v1/acme/collections", nil, expired)
	assertStatus(t, rr, http.StatusUnauthorized)
	if !strings.Contains(rr.Body.String(), "Token expired") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAPI_TenantScope(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/acme/_tenant", nil, adminKey), http.StatusCreated)
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/globex/_tenant", nil, adminKey), http.StatusCreated)

	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/acme/collections", nil, acmeKey), http.StatusOK)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/globex/collections", nil, acmeKey), http.StatusForbidden)
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/globex/_tenant", nil, acmeKey), http.StatusForbidden)

	rr := env.doAPIKey(t, "GET", "/api/v1/system/tenants", nil, acmeKey)
	assertStatus(t, rr, http.StatusOK)
	var resp struct {
		Data []string `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Data) != 1 || resp.Data[0] != "acme" {
		t.Errorf("tenants = %v, want [acme]", resp.Data)
	}
}

// ---------------------------------------------------------------------------
// Full workflow: provision -> schema -> documents -> session token
// ---------------------------------------------------------------------------

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)

	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/acme/_tenant", nil, acmeKey), http.StatusCreated)

	rr := env.doAPIKey(t, "POST", "/api/v1/acme/collections?fields=id,createdBy",
		jsonBody(t, map[string]any{"name": "posts", "type": "multiple"}), acmeKey)
	assertStatus(t, rr, http.StatusCreated)
	var created struct {
		Data []struct {
			ID        int64  `json:"id"`
			CreatedBy string `json:"createdBy"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &created)
	if len(created.Data) != 1 || created.Data[0].CreatedBy != "acme-editor" {
		t.Fatalf("created = %+v", created)
	}

	rr = env.doAPIKey(t, "POST", "/api/v1/acme/collections/posts/columns",
		jsonBody(t, map[string]any{"columnName": "Title", "fieldId": "title", "type": "text",
			"validation": map[string]any{"required": true}}), acmeKey)
	assertStatus(t, rr, http.StatusCreated)

	rr = env.doAPIKey(t, "POST", "/api/v1/acme/collections/posts/documents",
		jsonBody(t, []map[string]any{{"title": "Hello"}, {"title": "World"}}), acmeKey)
	assertStatus(t, rr, http.StatusCreated)

	rr = env.doAPIKey(t, "POST", "/api/v1/acme/collections/posts/documents",
		jsonBody(t, map[string]any{}), acmeKey)
	assertStatus(t, rr, http.StatusBadRequest)

	// Exchange the API key for a session token and read with it.
	rr = env.doAPIKey(t, "POST", "/api/v1/system/session", nil, acmeKey)
	assertStatus(t, rr, http.StatusOK)
	var session struct {
		Data struct {
			Token string `json:"session_token"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &session)
	if session.Data.Token == "" {
		t.Fatal("empty session token")
	}

	rr = env.doAuth(t, "GET", "/api/v1/acme/collections/posts/documents?order=title+desc", nil, session.Data.Token)
	assertStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("X-Total-Count"); got != "2" {
		t.Errorf("X-Total-Count = %q, want 2", got)
	}
	var view struct {
		Data struct {
			Documents []map[string]any `json:"documents"`
		} `json:"data"`
		Total int64 `json:"total"`
	}
	decodeJSON(t, rr, &view)
	if len(view.Data.Documents) != 2 || view.Data.Documents[0]["title"] != "World" {
		t.Errorf("documents = %v", view.Data.Documents)
	}

	rr = env.doAuth(t, "GET", "/api/v1/acme/collections/posts/_doc", nil, session.Data.Token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "DELETE", fmt.Sprintf("/api/v1/acme/collections/%d", created.Data[0].ID), nil, session.Data.Token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "GET", "/api/v1/acme/collections/posts/documents", nil, session.Data.Token)
	assertStatus(t, rr, http.StatusOK)
	if got := strings.TrimSpace(rr.Body.String()); got != `{"data":{},"error":"","total":0,"totalPages":0}` {
		t.Errorf("view after delete = %s", got)
	}
}

// ---------------------------------------------------------------------------
// Transport concerns
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/api/v1/acme/collections", nil, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "GET",
		"Access-Control-Request-Headers": "Authorization,Content-Type,X-API-Key",
	})

	if rr.Code < 200 || rr.Code >= 300 {
		t.Errorf("CORS preflight status = %d, want 2xx", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAPIKey(t, "PUT", "/api/v1/acme/documents", nil, adminKey)
	assertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestMaxBodySize(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBodySize = 64 })
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/acme/_tenant", nil, adminKey), http.StatusCreated)

	big := `{"name":"` + strings.Repeat("x", 200) + `","type":"multiple"}`
	rr := env.doAPIKey(t, "POST", "/api/v1/acme/collections", strings.NewReader(big), adminKey)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestTenantRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.TenantRateLimit = 2 })
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/acme/_tenant", nil, adminKey), http.StatusCreated)

	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/acme/collections", nil, adminKey), http.StatusOK)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/acme/collections", nil, adminKey), http.StatusTooManyRequests)

	// Another tenant has its own budget.
	assertStatus(t, env.doAPIKey(t, "POST", "/api/v1/globex/_tenant", nil, adminKey), http.StatusCreated)
	assertStatus(t, env.doAPIKey(t, "GET", "/api/v1/globex/collections", nil, adminKey), http.StatusOK)
}

func TestMCPMount(t *testing.T) {
	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { conn.Disconnect() })
	types, _ := fieldtype.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(testJWTSecret,
		service.APIKey{KeyHash: service.HashAPIKey(adminKey), UserID: "admin"})
	srv := New(DefaultConfig(), conn, service.NewContentService(conn, types, logger), authSvc, logger, WithMCP(mcpStub))

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("POST", "/mcp", nil))
	assertStatus(t, rr, http.StatusUnauthorized)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("X-API-Key", adminKey)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assertStatus(t, rr, http.StatusAccepted)
}
