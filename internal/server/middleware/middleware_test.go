package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/basin/internal/service"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestRequestIDReplacesOversizedClientID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); len(respID) != 36 {
		t.Errorf("expected a generated ID, got %q", respID)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Authenticate / RequireTenant tests
// ---------------------------------------------------------------------------

func newAuth(t *testing.T) *service.AuthService {
	t.Helper()
	return service.NewAuthService("middleware-test-secret", service.APIKey{
		Label:   "ci",
		KeyHash: service.HashAPIKey("basin_ci_key"),
		UserID:  "ci-bot",
		Tenants: []string{"acme"},
	})
}

func tenantRouter(auth *service.AuthService, seen *string) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/{tenant}", func(r chi.Router) {
		r.Use(Authenticate(auth))
		r.Use(RequireTenant("tenant"))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			*seen = GetPrincipal(r.Context()).UserID
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	auth := newAuth(t)
	token, err := auth.IssueJWT(context.Background(), "user-7", nil, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	expired, err := auth.IssueJWT(context.Background(), "user-7", nil, -time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		header   string
		value    string
		wantCode int
		wantUser string
		wantErr  string
	}{
		{"bearer", "/api/v1/globex/ping", "Authorization", "Bearer " + token, http.StatusOK, "user-7", ""},
		{"api key", "/api/v1/acme/ping", "X-API-Key", "basin_ci_key", http.StatusOK, "ci-bot", ""},
		{"api key other tenant", "/api/v1/globex/ping", "X-API-Key", "basin_ci_key", http.StatusForbidden, "", "Access to this tenant is not allowed"},
		{"bad key", "/api/v1/acme/ping", "X-API-Key", "nope", http.StatusUnauthorized, "", "Invalid API key"},
		{"expired", "/api/v1/acme/ping", "Authorization", "Bearer " + expired, http.StatusUnauthorized, "", "Token expired"},
		{"garbage", "/api/v1/acme/ping", "Authorization", "Bearer x.y.z", http.StatusUnauthorized, "", "Invalid token"},
		{"none", "/api/v1/acme/ping", "", "", http.StatusUnauthorized, "", "Authentication required. Provide X-API-Key header or Bearer token."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			tenantRouter(auth, &seen).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if seen != tt.wantUser {
				t.Errorf("user = %q, want %q", seen, tt.wantUser)
			}
			if tt.wantErr != "" {
				var body struct {
					Data  []any  `json:"data"`
					Error string `json:"error"`
				}
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body.Error != tt.wantErr || body.Data == nil {
					t.Errorf("body = %s", rr.Body.String())
				}
			}
		})
	}
}

func TestGetPrincipalWithoutValue(t *testing.T) {
	if got := GetPrincipal(context.Background()); got != nil {
		t.Error("expected nil principal from bare context")
	}
}

// ---------------------------------------------------------------------------
// Logger tests
// ---------------------------------------------------------------------------

func TestLoggerRecordsTenantAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Get("/api/v1/{tenant}/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/api/v1/acme/missing", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" || entry["tenant"] != "acme" || entry["status"] != float64(404) {
		t.Errorf("log entry = %v", entry)
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Errorf("log entry lacks request id: %v", entry)
	}
}

func TestRateLimitByTenant(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api/v1/{tenant}", func(r chi.Router) {
		r.Use(RateLimitByTenant("tenant", 1))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {})
	})

	do := func(path string) int {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		return rr.Code
	}
	if code := do("/api/v1/acme/"); code != http.StatusOK {
		t.Fatalf("first acme request = %d", code)
	}
	if code := do("/api/v1/acme/"); code != http.StatusTooManyRequests {
		t.Errorf("second acme request = %d, want 429", code)
	}
	if code := do("/api/v1/globex/"); code != http.StatusOK {
		t.Errorf("globex request = %d, want 200", code)
	}
}
