package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/store"
)

// DocumentsView returns the collection matching where with its columns and
// one ordered page of flattened documents. An unknown collection is not an
// error: the view is empty and the total zero.
func (s *ContentService) DocumentsView(ctx context.Context, tenant string, where store.Where, opts store.ViewOptions) model.PagedEnvelope[model.DocumentsView] {
	const op = "documents view"
	empty := model.DocumentsView{}
	if len(where) == 0 {
		return failPaged(required(op, "collection"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return failPaged(f, empty)
	}
	view, total, err := st.DocumentsView(ctx, where, opts)
	if err != nil {
		return failPaged(s.storeFailure(op, tenant, err), empty)
	}
	if !view.Found() {
		return model.PagedEnvelope[model.DocumentsView]{Data: empty}
	}
	private := s.privateFields(view.Columns)
	for _, doc := range view.Documents {
		mask(doc, private)
	}
	limit, _ := query.Paginate(opts.Page, opts.Limit)
	return model.PagedEnvelope[model.DocumentsView]{
		Data:       view,
		Total:      total,
		TotalPages: model.TotalPages(total, limit),
	}
}

// GetDocument returns one flattened document, or no rows.
func (s *ContentService) GetDocument(ctx context.Context, tenant string, id int64) model.Envelope[[]map[string]any] {
	const op = "get document"
	empty := []map[string]any{}
	if id <= 0 {
		return fail(required(op, "id"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	doc, err := st.GetDocument(ctx, id, nil)
	if errors.Is(err, store.ErrNotFound) {
		return ok(empty)
	}
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	cols, err := st.ListColumns(ctx, doc.CollectionID, []string{"fieldId", "type"})
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	flat := doc.Flatten()
	mask(flat, s.privateFields(cols))
	return ok([]map[string]any{flat})
}

// InsertDocuments validates every payload against the collection's columns
// and inserts them in one statement. A single collection holds at most one
// document.
func (s *ContentService) InsertDocuments(ctx context.Context, tenant string, collectionID int64, docs []map[string]any, userID string, returning []string) model.Envelope[[]model.Document] {
	const op = "insert documents"
	empty := []model.Document{}
	switch {
	case collectionID <= 0:
		return fail(required(op, "collectionId"), empty)
	case len(docs) == 0:
		return fail(required(op, "documents"), empty)
	case userID == "":
		return fail(required(op, "userId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}

	collections, err := st.FindCollections(ctx, store.Where{"id": collectionID}, []string{"id", "name", "type"})
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	if len(collections) == 0 {
		return fail(&failure{kind: model.KindNotFound, msg: fmt.Sprintf("%s: collection %d not found", op, collectionID)}, empty)
	}
	if collections[0].Type == model.CollectionSingle {
		n, err := st.CountDocuments(ctx, collectionID)
		if err != nil {
			return fail(s.storeFailure(op, tenant, err), empty)
		}
		if n+int64(len(docs)) > 1 {
			return fail(invalid("%s: collection %q is a single collection and holds at most one document", op, collections[0].Name), empty)
		}
	}

	cols, err := st.ListColumns(ctx, collectionID, nil)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	payloads := make([]map[string]any, len(docs))
	for i, doc := range docs {
		p, f := s.validateDocument(cols, doc, false)
		if f != nil {
			if len(docs) > 1 {
				f.msg = fmt.Sprintf("document %d: %s", i+1, f.msg)
			}
			return fail(f, empty)
		}
		payloads[i] = p
	}

	rows, err := st.InsertDocuments(ctx, collectionID, payloads, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	maskDocuments(rows, s.privateFields(cols))
	return ok(rows)
}

// UpdateDocument validates the supplied keys and shallow-merges them into
// the stored payload. An unknown id yields no rows.
func (s *ContentService) UpdateDocument(ctx context.Context, tenant string, id int64, partial map[string]any, userID string, returning []string) model.Envelope[[]model.Document] {
	const op = "update document"
	empty := []model.Document{}
	switch {
	case id <= 0:
		return fail(required(op, "id"), empty)
	case len(partial) == 0:
		return fail(required(op, "data"), empty)
	case userID == "":
		return fail(required(op, "userId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}

	doc, err := st.GetDocument(ctx, id, []string{"id", "collectionId"})
	if errors.Is(err, store.ErrNotFound) {
		return ok(empty)
	}
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	cols, err := st.ListColumns(ctx, doc.CollectionID, nil)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	payload, f := s.validateDocument(cols, partial, true)
	if f != nil {
		return fail(f, empty)
	}

	rows, err := st.UpdateDocument(ctx, id, payload, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	maskDocuments(rows, s.privateFields(cols))
	return ok(rows)
}

// RemoveDocuments deletes documents by id and returns the deleted rows.
func (s *ContentService) RemoveDocuments(ctx context.Context, tenant string, ids []int64, returning []string) model.Envelope[[]model.Document] {
	const op = "remove documents"
	empty := []model.Document{}
	if len(ids) == 0 {
		return fail(required(op, "ids"), empty)
	}
	for _, id := range ids {
		if id <= 0 {
			return fail(invalid("%s: invalid id %d", op, id), empty)
		}
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.RemoveDocuments(ctx, ids, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

func maskDocuments(docs []model.Document, private []string) {
	for i := range docs {
		if docs[i].Data != nil {
			mask(docs[i].Data, private)
		}
	}
}
