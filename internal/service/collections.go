package service

import (
	"context"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/store"
)

// ListCollections returns one page of a tenant's collections with the total
// count. An empty page reports a total of zero without counting.
func (s *ContentService) ListCollections(ctx context.Context, tenant string, opts store.ListOptions) model.PagedEnvelope[[]model.Collection] {
	const op = "list collections"
	empty := []model.Collection{}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return failPaged(f, empty)
	}
	rows, err := st.ListCollections(ctx, opts)
	if err != nil {
		return failPaged(s.storeFailure(op, tenant, err), empty)
	}
	if len(rows) == 0 {
		return model.PagedEnvelope[[]model.Collection]{Data: empty}
	}
	total, err := st.CountCollections(ctx)
	if err != nil {
		return failPaged(s.storeFailure(op, tenant, err), empty)
	}
	limit, _ := query.Paginate(opts.Page, opts.Limit)
	return model.PagedEnvelope[[]model.Collection]{
		Data:       rows,
		Total:      total,
		TotalPages: model.TotalPages(total, limit),
	}
}

// GetCollection returns the collection with the given name, or no rows.
func (s *ContentService) GetCollection(ctx context.Context, tenant, name string, fields []string) model.Envelope[[]model.Collection] {
	const op = "get collection"
	empty := []model.Collection{}
	if name == "" {
		return fail(required(op, "name"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.FindCollections(ctx, store.Where{"name": name}, fields)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

// InsertCollection validates and creates a collection.
func (s *ContentService) InsertCollection(ctx context.Context, tenant string, in model.CollectionInput, userID string, returning []string) model.Envelope[[]model.Collection] {
	const op = "insert collection"
	empty := []model.Collection{}
	if userID == "" {
		return fail(required(op, "userId"), empty)
	}
	if f := s.check(op, in); f != nil {
		return fail(f, empty)
	}
	if f := checkColumnOrder(op, in.ColumnOrder, nil); f != nil {
		return fail(f, empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.InsertCollection(ctx, in, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	s.logger.Debug("collection created", "tenant", tenant, "name", in.Name)
	return ok(rows)
}

// UpdateCollection applies a partial update. Reordering columns is an update
// of columnOrder, whose entries must name columns of the collection. A
// collection holding several documents cannot become a single collection.
func (s *ContentService) UpdateCollection(ctx context.Context, tenant string, id int64, patch model.CollectionPatch, userID string, returning []string) model.Envelope[[]model.Collection] {
	const op = "update collection"
	empty := []model.Collection{}
	switch {
	case id <= 0:
		return fail(required(op, "id"), empty)
	case patch.Empty():
		return fail(required(op, "data"), empty)
	case userID == "":
		return fail(required(op, "userId"), empty)
	}
	if f := s.check(op, patch); f != nil {
		return fail(f, empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	if patch.ColumnOrder != nil {
		fieldIDs, err := st.FieldIDs(ctx, id)
		if err != nil {
			return fail(s.storeFailure(op, tenant, err), empty)
		}
		if f := checkColumnOrder(op, patch.ColumnOrder, fieldIDs); f != nil {
			return fail(f, empty)
		}
	}
	if patch.Type != nil && *patch.Type == model.CollectionSingle {
		n, err := st.CountDocuments(ctx, id)
		if err != nil {
			return fail(s.storeFailure(op, tenant, err), empty)
		}
		if n > 1 {
			return fail(invalid("%s: collection %d holds %d documents and cannot become a single collection", op, id, n), empty)
		}
	}
	rows, err := st.UpdateCollection(ctx, id, patch, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

// SetColumnOrder replaces a collection's column order.
func (s *ContentService) SetColumnOrder(ctx context.Context, tenant string, id int64, order []string, userID string) model.Envelope[[]model.Collection] {
	if order == nil {
		return fail(required("set column order", "columnOrder"), []model.Collection{})
	}
	return s.UpdateCollection(ctx, tenant, id, model.CollectionPatch{ColumnOrder: order}, userID, []string{"id", "columnOrder", "updatedAt", "updatedBy"})
}

// RemoveCollections deletes the collections matching where together with
// their columns and documents. A filter is mandatory.
func (s *ContentService) RemoveCollections(ctx context.Context, tenant string, where store.Where, returning []string) model.Envelope[[]model.Collection] {
	const op = "remove collection"
	empty := []model.Collection{}
	if len(where) == 0 {
		return fail(required(op, "filter"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.DeleteCollections(ctx, where, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	if len(rows) > 0 {
		s.logger.Info("collections removed", "tenant", tenant, "count", len(rows))
	}
	return ok(rows)
}
