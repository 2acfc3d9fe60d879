package handler

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

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/connector/sqlite"
	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/service"
)

const testUser = "editor-1"

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	svc    *service.ContentService
	router chi.Router
}

// envelope is the decoded form of every response body.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Total      int64           `json:"total"`
	TotalPages int64           `json:"totalPages"`
}

// newTestEnv creates a fresh test environment with an in-memory SQLite
// connector, a provisioned "acme" tenant and a Chi router with the content
// routes mounted (no auth middleware).
func newTestEnv(t *testing.T) *testEnv {
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
	svc := service.NewContentService(conn, types, slog.New(slog.NewTextHandler(io.Discard, nil)))

	h := NewContentHandler(svc, func(*http.Request) string { return testUser })
	oh := NewOpenAPIHandler(svc)

	r := chi.NewRouter()
	r.Get("/api/v1/field-types", h.ListFieldTypes)
	r.Route("/api/v1/{tenant}", func(r chi.Router) {
		r.Post("/_tenant", h.ProvisionTenant)

		r.Get("/collections", h.ListCollections)
		r.Post("/collections", h.CreateCollection)
		r.Patch("/collections/{collection}", h.UpdateCollection)
		r.Delete("/collections/{collection}", h.DeleteCollection)
		r.Put("/collections/{collection}/column-order", h.SetColumnOrder)
		r.Get("/collections/{collection}/_doc", oh.ServeCollectionSpec)

		r.Get("/collections/{collection}/columns", h.ListColumns)
		r.Post("/collections/{collection}/columns", h.CreateColumn)
		r.Get("/collections/{collection}/columns/{fieldId}", h.GetColumn)
		r.Patch("/collections/{collection}/columns/{fieldId}", h.UpdateColumn)
		r.Delete("/collections/{collection}/columns/{fieldId}", h.DeleteColumn)
		r.Post("/collections/{collection}/columns/{fieldId}/sort", h.SortColumn)

		r.Get("/collections/{collection}/documents", h.ListDocuments)
		r.Post("/collections/{collection}/documents", h.CreateDocuments)
		r.Get("/documents/{id}", h.GetDocument)
		r.Patch("/documents/{id}", h.UpdateDocument)
		r.Delete("/documents", h.DeleteDocuments)
	})

	env := &testEnv{svc: svc, router: r}
	rr := env.do(t, "POST", "/api/v1/acme/_tenant", nil)
	assertStatus(t, rr, http.StatusCreated)
	return env
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// seedCollection creates a multiple collection with a text "title" column.
func (e *testEnv) seedCollection(t *testing.T, name string) int64 {
	t.Helper()
	rr := e.do(t, "POST", "/api/v1/acme/collections", toJSON(t, map[string]any{"name": name, "type": "multiple"}))
	assertStatus(t, rr, http.StatusCreated)
	var created []struct {
		ID int64 `json:"id"`
	}
	decodeData(t, rr, &created)
	if len(created) != 1 {
		t.Fatalf("seedCollection: got %d rows", len(created))
	}

	rr = e.do(t, "POST", "/api/v1/acme/collections/"+name+"/columns", toJSON(t, map[string]any{
		"columnName": "Title", "fieldId": "title", "type": "text",
	}))
	assertStatus(t, rr, http.StatusCreated)
	return created[0].ID
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// decodeData decodes an envelope, fails on an error message and unmarshals
// its data into v.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) envelope {
	t.Helper()
	var env envelope
	decodeJSON(t, rr, &env)
	if env.Error != "" {
		t.Fatalf("unexpected error %q", env.Error)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v; data = %s", err, env.Data)
	}
	return env
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

func TestCollectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedCollection(t, "posts")

	rr := env.do(t, "GET", "/api/v1/acme/collections?fields=id,name,columnOrder", nil)
	assertStatus(t, rr, http.StatusOK)
	if got := rr.Header().Get("X-Total-Count"); got != "1" {
		t.Errorf("X-Total-Count = %q, want 1", got)
	}
	var list []struct {
		ID          int64    `json:"id"`
		Name        string   `json:"name"`
		ColumnOrder []string `json:"columnOrder"`
	}
	page := decodeData(t, rr, &list)
	if page.Total != 1 || page.TotalPages != 1 {
		t.Errorf("total = %d/%d, want 1/1", page.Total, page.TotalPages)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Name != "posts" {
		t.Fatalf("list = %+v", list)
	}
	if diff := cmp.Diff([]string{"title"}, list[0].ColumnOrder); diff != "" {
		t.Errorf("columnOrder mismatch (-want +got):\n%s", diff)
	}

	// Address by name and by id.
	rr = env.do(t, "PATCH", "/api/v1/acme/collections/posts?fields=id,published,updatedBy", toJSON(t, map[string]any{"published": true}))
	assertStatus(t, rr, http.StatusOK)
	var patched []struct {
		Published bool   `json:"published"`
		UpdatedBy string `json:"updatedBy"`
	}
	decodeData(t, rr, &patched)
	if len(patched) != 1 || !patched[0].Published || patched[0].UpdatedBy != testUser {
		t.Errorf("patched = %+v", patched)
	}

	rr = env.do(t, "PUT", fmt.Sprintf("/api/v1/acme/collections/%d/column-order", id),
		toJSON(t, map[string]any{"columnOrder": []string{"_selection", "title", "_actions"}}))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "DELETE", "/api/v1/acme/collections/posts?fields=id", nil)
	assertStatus(t, rr, http.StatusOK)
	var removed []map[string]any
	decodeData(t, rr, &removed)
	if len(removed) != 1 {
		t.Errorf("removed %d collections, want 1", len(removed))
	}

	rr = env.do(t, "GET", "/api/v1/acme/collections", nil)
	assertStatus(t, rr, http.StatusOK)
	page = decodeData(t, rr, &list)
	if len(list) != 0 || page.Total != 0 {
		t.Errorf("after delete: %d rows, total %d", len(list), page.Total)
	}
}

func TestCreateCollectionErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing name", `{"type":"multiple"}`, http.StatusBadRequest, "Name is required"},
		{"bad type", `{"name":"x","type":"many"}`, http.StatusBadRequest, "Type must be one of: single, multiple"},
		{"numeric name", `{"name":"2024","type":"multiple"}`, http.StatusBadRequest, "Name must not consist of digits only"},
		{"duplicate", `{"name":"posts","type":"multiple"}`, http.StatusConflict, service.DuplicateMessage},
		{"invalid json", `{"name":`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/v1/acme/collections", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.wantStatus)
			var got envelope
			decodeJSON(t, rr, &got)
			if !strings.HasPrefix(got.Error, tt.wantError) {
				t.Errorf("error = %q, want prefix %q", got.Error, tt.wantError)
			}
			if string(got.Data) != "[]" {
				t.Errorf("data = %s, want []", got.Data)
			}
		})
	}
}

func TestInvalidQueryParams(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"bad fields", "GET", "/api/v1/acme/collections?fields=na-me"},
		{"bad order", "GET", "/api/v1/acme/collections/posts/documents?order=title+sideways"},
		{"bad document id", "GET", "/api/v1/acme/documents/abc"},
		{"zero document id", "PATCH", "/api/v1/acme/documents/0"},
		{"bad ids", "DELETE", "/api/v1/acme/documents?ids=1,x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, nil)
			assertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

// ---------------------------------------------------------------------------
// Columns
// ---------------------------------------------------------------------------

func TestColumnEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	rr := env.do(t, "POST", "/api/v1/acme/collections/posts/columns", toJSON(t, map[string]any{
		"columnName": "Title", "fieldId": "title", "type": "text",
	}))
	assertStatus(t, rr, http.StatusConflict)

	rr = env.do(t, "POST", "/api/v1/acme/collections/posts/columns", toJSON(t, map[string]any{
		"columnName": "Id", "fieldId": "id", "type": "text",
	}))
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/v1/acme/collections/missing/columns", toJSON(t, map[string]any{
		"columnName": "Body", "fieldId": "body", "type": "text",
	}))
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "PATCH", "/api/v1/acme/collections/posts/columns/title?fields=fieldId,columnName", toJSON(t, map[string]any{"columnName": "Headline"}))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/acme/collections/posts/columns/title?fields=fieldId,columnName", nil)
	assertStatus(t, rr, http.StatusOK)
	var cols []map[string]any
	decodeData(t, rr, &cols)
	want := []map[string]any{{"fieldId": "title", "columnName": "Headline"}}
	if diff := cmp.Diff(want, cols); diff != "" {
		t.Errorf("column mismatch (-want +got):\n%s", diff)
	}

	rr = env.do(t, "DELETE", "/api/v1/acme/collections/posts/columns/title?fields=fieldId", nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/v1/acme/collections/posts/columns", nil)
	assertStatus(t, rr, http.StatusOK)
	decodeData(t, rr, &cols)
	if len(cols) != 0 {
		t.Errorf("columns after delete = %v", cols)
	}
}

func TestSortColumnEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")
	rr := env.do(t, "POST", "/api/v1/acme/collections/posts/documents",
		toJSON(t, []map[string]any{{"title": "b"}, {"title": "a"}, {"title": "c"}}))
	assertStatus(t, rr, http.StatusCreated)

	type view struct {
		Columns []struct {
			FieldID string `json:"fieldId"`
			SortBy  string `json:"sortBy"`
		} `json:"columns"`
		Documents []map[string]any `json:"documents"`
	}
	titles := func(v view) []string {
		var out []string
		for _, d := range v.Documents {
			out = append(out, d["title"].(string))
		}
		return out
	}

	for _, want := range []struct {
		sort   string
		titles []string
	}{
		{"asc", []string{"a", "b", "c"}},
		{"desc", []string{"c", "b", "a"}},
		{"asc", []string{"a", "b", "c"}},
	} {
		rr = env.do(t, "POST", "/api/v1/acme/collections/posts/columns/title/sort", nil)
		assertStatus(t, rr, http.StatusOK)
		var v view
		decodeData(t, rr, &v)
		if len(v.Columns) != 1 || v.Columns[0].SortBy != want.sort {
			t.Fatalf("columns = %+v, want sortBy %q", v.Columns, want.sort)
		}
		if diff := cmp.Diff(want.titles, titles(v)); diff != "" {
			t.Errorf("order mismatch for %s (-want +got):\n%s", want.sort, diff)
		}
	}

	rr = env.do(t, "POST", "/api/v1/acme/collections/posts/columns/nope/sort", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestDocumentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	rr := env.do(t, "POST", "/api/v1/acme/collections/posts/documents?fields=id,data",
		toJSON(t, map[string]any{"documents": []map[string]any{{"title": "first"}, {"title": "second"}}}))
	assertStatus(t, rr, http.StatusCreated)
	var created []struct {
		ID   int64          `json:"id"`
		Data map[string]any `json:"data"`
	}
	decodeData(t, rr, &created)
	if len(created) != 2 {
		t.Fatalf("created %d documents, want 2", len(created))
	}
	first := created[0].ID

	rr = env.do(t, "GET", "/api/v1/acme/collections/posts/documents?order=title+desc&limit=1", nil)
	assertStatus(t, rr, http.StatusOK)
	var view struct {
		Documents []map[string]any `json:"documents"`
	}
	page := decodeData(t, rr, &view)
	if page.Total != 2 || page.TotalPages != 2 {
		t.Errorf("total = %d/%d, want 2/2", page.Total, page.TotalPages)
	}
	if len(view.Documents) != 1 || view.Documents[0]["title"] != "second" {
		t.Errorf("documents = %v", view.Documents)
	}

	rr = env.do(t, "PATCH", fmt.Sprintf("/api/v1/acme/documents/%d", first), toJSON(t, map[string]any{"title": "renamed"}))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", fmt.Sprintf("/api/v1/acme/documents/%d", first), nil)
	assertStatus(t, rr, http.StatusOK)
	var docs []map[string]any
	decodeData(t, rr, &docs)
	if len(docs) != 1 || docs[0]["title"] != "renamed" || docs[0]["updatedBy"] != testUser {
		t.Errorf("document = %v", docs)
	}

	rr = env.do(t, "DELETE", fmt.Sprintf("/api/v1/acme/documents?ids=%d&fields=id", first), nil)
	assertStatus(t, rr, http.StatusOK)
	decodeData(t, rr, &docs)
	if len(docs) != 1 {
		t.Errorf("deleted %d documents, want 1", len(docs))
	}

	rr = env.do(t, "DELETE", "/api/v1/acme/documents", toJSON(t, map[string]any{"ids": []int64{created[1].ID}}))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", fmt.Sprintf("/api/v1/acme/documents/%d", first), nil)
	assertStatus(t, rr, http.StatusOK)
	decodeData(t, rr, &docs)
	if len(docs) != 0 {
		t.Errorf("document still present: %v", docs)
	}
}

func TestCreateDocumentsValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	rr := env.do(t, "POST", "/api/v1/acme/collections/posts/documents", toJSON(t, map[string]any{"colour": "red"}))
	assertStatus(t, rr, http.StatusBadRequest)
	var got envelope
	decodeJSON(t, rr, &got)
	if !strings.Contains(got.Error, `unknown field "colour"`) {
		t.Errorf("error = %q", got.Error)
	}

	rr = env.do(t, "POST", "/api/v1/acme/collections/posts/documents", strings.NewReader(`"title"`))
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestUnknownCollection(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/acme/collections/nope/documents", nil)
	assertStatus(t, rr, http.StatusOK)
	var got envelope
	decodeJSON(t, rr, &got)
	if string(got.Data) != "{}" || got.Error != "" {
		t.Errorf("view = %s / %q, want {} and no error", got.Data, got.Error)
	}

	rr = env.do(t, "POST", "/api/v1/acme/collections/nope/documents", toJSON(t, map[string]any{"title": "x"}))
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "GET", "/api/v1/acme/collections/nope/_doc", nil)
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.do(t, "POST", "/api/v1/acme/collections/2024/columns", toJSON(t, map[string]any{
		"columnName": "Title", "fieldId": "title", "type": "text",
	}))
	assertStatus(t, rr, http.StatusNotFound)
	decodeJSON(t, rr, &got)
	if got.Error != "insert column: collection 2024 not found" {
		t.Errorf("error = %q", got.Error)
	}
}

// ---------------------------------------------------------------------------
// OpenAPI and field types
// ---------------------------------------------------------------------------

func TestServeCollectionSpec(t *testing.T) {
	env := newTestEnv(t)
	env.seedCollection(t, "posts")

	rr := env.do(t, "GET", "/api/v1/acme/collections/posts/_doc", nil)
	assertStatus(t, rr, http.StatusOK)
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Servers []struct{ URL string }    `json:"servers"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if _, ok := doc.Paths["/api/v1/acme/collections/posts/documents"]; !ok {
		t.Errorf("documents path missing from %v", doc.Paths)
	}
}

func TestListFieldTypes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", len(env.svc.FieldTypes().List())},
		{"?creatable=true", len(env.svc.FieldTypes().UserCreatable())},
	}
	for _, tt := range tests {
		rr := env.do(t, "GET", "/api/v1/field-types"+tt.query, nil)
		assertStatus(t, rr, http.StatusOK)
		var types []struct {
			Key    string `json:"key"`
			System bool   `json:"system"`
		}
		decodeData(t, rr, &types)
		if len(types) != tt.want {
			t.Errorf("%q: got %d types, want %d", tt.query, len(types), tt.want)
		}
		if tt.query != "" {
			for _, ft := range types {
				if ft.System {
					t.Errorf("system type %q listed as creatable", ft.Key)
				}
			}
		}
	}
}
