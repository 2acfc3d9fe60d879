package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/service"
	"github.com/faucetdb/basin/internal/store"
)

// ContentHandler serves the collection, column and document endpoints of a
// tenant. Every response body is a service envelope.
type ContentHandler struct {
	svc  *service.ContentService
	user UserFunc
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(svc *service.ContentService, user UserFunc) *ContentHandler {
	return &ContentHandler{svc: svc, user: user}
}

func tenantParam(r *http.Request) string {
	return chi.URLParam(r, "tenant")
}

// collectionWhere addresses a collection by numeric id or by name. Names
// are never all digits, so a numeric segment is always an id.
func collectionWhere(r *http.Request) store.Where {
	ref := chi.URLParam(r, "collection")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return store.Where{"id": id}
	}
	return store.Where{"name": ref}
}

// resolveCollection returns the id of the collection named in the path. It
// writes the response itself and returns false when there is none.
func (h *ContentHandler) resolveCollection(w http.ResponseWriter, r *http.Request) (int64, bool) {
	where := collectionWhere(r)
	if id, ok := where["id"].(int64); ok {
		return id, true
	}
	name := where["name"].(string)
	env := h.svc.GetCollection(r.Context(), tenantParam(r), name, []string{"id"})
	if !env.OK() {
		writeEnvelope(w, http.StatusOK, env)
		return 0, false
	}
	if len(env.Data) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("collection %q not found", name))
		return 0, false
	}
	return env.Data[0].ID, true
}

// ---------------------------------------------------------------------------
// Tenants
// ---------------------------------------------------------------------------

// ProvisionTenant creates the tenant namespace if it does not exist.
// POST /api/v1/{tenant}/_tenant
func (h *ContentHandler) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusCreated, h.svc.ProvisionTenant(r.Context(), tenantParam(r)))
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// ListCollections returns one page of collections.
// GET /api/v1/{tenant}/collections?page=&limit=&fields=&order=
func (h *ContentHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	order, err := query.ParseOrderClause(queryString(r, "order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order: "+err.Error())
		return
	}
	page, limit := pageParams(r)
	writePaged(w, h.svc.ListCollections(r.Context(), tenantParam(r), store.ListOptions{
		Page: page, Limit: limit, Fields: fields, Order: order,
	}))
}

// CreateCollection creates a collection.
// POST /api/v1/{tenant}/collections
func (h *ContentHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var in model.CollectionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	writeEnvelope(w, http.StatusCreated, h.svc.InsertCollection(r.Context(), tenantParam(r), in, h.user(r), fields))
}

// UpdateCollection applies a partial update to a collection.
// PATCH /api/v1/{tenant}/collections/{collection}
func (h *ContentHandler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	var patch model.CollectionPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.UpdateCollection(r.Context(), tenantParam(r), id, patch, h.user(r), fields))
}

// SetColumnOrder replaces the column order of a collection.
// PUT /api/v1/{tenant}/collections/{collection}/column-order
func (h *ContentHandler) SetColumnOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ColumnOrder []string `json:"columnOrder"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.SetColumnOrder(r.Context(), tenantParam(r), id, body.ColumnOrder, h.user(r)))
}

// DeleteCollection deletes a collection with its columns and documents.
// DELETE /api/v1/{tenant}/collections/{collection}
func (h *ContentHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.RemoveCollections(r.Context(), tenantParam(r), collectionWhere(r), fields))
}

// ---------------------------------------------------------------------------
// Columns
// ---------------------------------------------------------------------------

// ListColumns returns the columns of a collection.
// GET /api/v1/{tenant}/collections/{collection}/columns
func (h *ContentHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.ListColumns(r.Context(), tenantParam(r), id, fields))
}

// GetColumn returns one column of a collection.
// GET /api/v1/{tenant}/collections/{collection}/columns/{fieldId}
func (h *ContentHandler) GetColumn(w http.ResponseWriter, r *http.Request) {
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.GetColumn(r.Context(), tenantParam(r), id, chi.URLParam(r, "fieldId"), fields))
}

// CreateColumn adds a column to a collection.
// POST /api/v1/{tenant}/collections/{collection}/columns
func (h *ContentHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	var in model.ColumnInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	in.CollectionID = id
	writeEnvelope(w, http.StatusCreated, h.svc.InsertColumn(r.Context(), tenantParam(r), in, h.user(r), fields))
}

// UpdateColumn applies a partial update to one column.
// PATCH /api/v1/{tenant}/collections/{collection}/columns/{fieldId}
func (h *ContentHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	var patch model.ColumnPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	where := store.Where{"fieldId": chi.URLParam(r, "fieldId")}
	writeEnvelope(w, http.StatusOK, h.svc.UpdateColumns(r.Context(), tenantParam(r), id, where, patch, h.user(r), fields))
}

// DeleteColumn removes a column and strips its key from every document.
// DELETE /api/v1/{tenant}/collections/{collection}/columns/{fieldId}
func (h *ContentHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.RemoveColumns(r.Context(), tenantParam(r), chi.URLParam(r, "fieldId"), id, fields))
}

// SortColumn toggles the sort direction of a column and returns the
// documents view ordered by it.
// POST /api/v1/{tenant}/collections/{collection}/columns/{fieldId}/sort?page=&limit=
func (h *ContentHandler) SortColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	page, limit := pageParams(r)
	writePaged(w, h.svc.SortColumn(r.Context(), tenantParam(r), id, chi.URLParam(r, "fieldId"), h.user(r), page, limit))
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// ListDocuments returns the documents view of a collection. An unknown
// collection yields an empty view, not an error.
// GET /api/v1/{tenant}/collections/{collection}/documents?page=&limit=&order=
func (h *ContentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	order, err := query.ParseOrderClause(queryString(r, "order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order: "+err.Error())
		return
	}
	page, limit := pageParams(r)
	writePaged(w, h.svc.DocumentsView(r.Context(), tenantParam(r), collectionWhere(r), store.ViewOptions{
		Page: page, Limit: limit, Order: order,
	}))
}

// CreateDocuments inserts one or more documents into a collection.
// POST /api/v1/{tenant}/collections/{collection}/documents
func (h *ContentHandler) CreateDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := parseDocumentsBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	id, ok := h.resolveCollection(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, http.StatusCreated, h.svc.InsertDocuments(r.Context(), tenantParam(r), id, docs, h.user(r), fields))
}

// GetDocument returns one flattened document.
// GET /api/v1/{tenant}/documents/{id}
func (h *ContentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.GetDocument(r.Context(), tenantParam(r), id))
}

// UpdateDocument merges a partial payload into a document.
// PATCH /api/v1/{tenant}/documents/{id}
func (h *ContentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var partial map[string]interface{}
	if err := readJSON(r, &partial); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.UpdateDocument(r.Context(), tenantParam(r), id, partial, h.user(r), fields))
}

// DeleteDocuments removes documents by id.
// DELETE /api/v1/{tenant}/documents?ids=1,2
func (h *ContentHandler) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(queryString(r, "ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ids) == 0 {
		var body struct {
			IDs []int64 `json:"ids"`
		}
		// Body may be empty for DELETE; ignore decode errors.
		if err := readJSON(r, &body); err == nil {
			ids = body.IDs
		}
	}
	fields, err := queryFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fields: "+err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, h.svc.RemoveDocuments(r.Context(), tenantParam(r), ids, fields))
}

// ---------------------------------------------------------------------------
// Field types
// ---------------------------------------------------------------------------

// ListFieldTypes returns the field type registry.
// GET /api/v1/field-types?creatable=true
func (h *ContentHandler) ListFieldTypes(w http.ResponseWriter, r *http.Request) {
	types := h.svc.FieldTypes()
	if v := queryString(r, "creatable"); v == "true" || v == "1" {
		writeJSON(w, http.StatusOK, model.Envelope[any]{Data: types.UserCreatable()})
		return
	}
	writeJSON(w, http.StatusOK, model.Envelope[any]{Data: types.List()})
}
