package handler

import (
	"fmt"
	"net/http"

	"github.com/faucetdb/basin/internal/openapi"
	"github.com/faucetdb/basin/internal/service"
	"github.com/faucetdb/basin/internal/store"
)

// OpenAPIHandler generates and serves OpenAPI 3.1 documents dynamically
// from the column set of a collection.
type OpenAPIHandler struct {
	svc *service.ContentService
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(svc *service.ContentService) *OpenAPIHandler {
	return &OpenAPIHandler{svc: svc}
}

// ServeCollectionSpec returns the OpenAPI document of one collection.
// GET /api/v1/{tenant}/collections/{collection}/_doc
func (h *OpenAPIHandler) ServeCollectionSpec(w http.ResponseWriter, r *http.Request) {
	tenant := tenantParam(r)
	view := h.svc.DocumentsView(r.Context(), tenant, collectionWhere(r), store.ViewOptions{Page: 1, Limit: 1})
	if !view.OK() {
		writePaged(w, view)
		return
	}
	if !view.Data.Found() {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	doc := openapi.GenerateCollectionSpec(tenant, baseURL(r), openapi.CollectionSpec{
		Collection: *view.Data.Collection,
		Columns:    view.Data.Columns,
	}, h.svc.FieldTypes())
	writeJSON(w, http.StatusOK, doc)
}

// baseURL reconstructs the externally visible origin of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
