package service

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/store"
)

// GetColumn returns the column of a collection with the given fieldId.
func (s *ContentService) GetColumn(ctx context.Context, tenant string, collectionID int64, fieldID string, fields []string) model.Envelope[[]model.Column] {
	const op = "get column"
	empty := []model.Column{}
	if collectionID <= 0 {
		return fail(required(op, "collectionId"), empty)
	}
	if fieldID == "" {
		return fail(required(op, "fieldId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.GetColumn(ctx, collectionID, fieldID, fields)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

// ListColumns returns every column of a collection.
func (s *ContentService) ListColumns(ctx context.Context, tenant string, collectionID int64, fields []string) model.Envelope[[]model.Column] {
	const op = "list columns"
	empty := []model.Column{}
	if collectionID <= 0 {
		return fail(required(op, "collectionId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.ListColumns(ctx, collectionID, fields)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

// InsertColumn validates and adds a column to a collection. Options and
// rules the caller leaves out are taken from the field type's defaults.
func (s *ContentService) InsertColumn(ctx context.Context, tenant string, in model.ColumnInput, userID string, returning []string) model.Envelope[[]model.Column] {
	const op = "insert column"
	empty := []model.Column{}
	if userID == "" {
		return fail(required(op, "userId"), empty)
	}
	if f := s.check(op, in); f != nil {
		return fail(f, empty)
	}
	if reservedFieldIDs[in.FieldID] {
		return fail(invalid("%s: fieldId %q is reserved", op, in.FieldID), empty)
	}
	d, f := s.checkFieldType(op, in.Type)
	if f != nil {
		return fail(f, empty)
	}
	if in.FieldOptions == nil {
		in.FieldOptions = maps.Clone(d.DefaultOptions)
	}
	if in.Validation == nil {
		in.Validation = d.DefaultRules.Map()
	}
	if f := checkRules(op, in.Validation, in.FieldOptions); f != nil {
		return fail(f, empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	collections, err := st.FindCollections(ctx, store.Where{"id": in.CollectionID}, []string{"id"})
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	if len(collections) == 0 {
		return fail(&failure{kind: model.KindNotFound, msg: fmt.Sprintf("%s: collection %d not found", op, in.CollectionID)}, empty)
	}
	if in.ColumnOrder != nil {
		fieldIDs, err := st.FieldIDs(ctx, in.CollectionID)
		if err != nil {
			return fail(s.storeFailure(op, tenant, err), empty)
		}
		if f := checkColumnOrder(op, in.ColumnOrder, append(fieldIDs, in.FieldID)); f != nil {
			return fail(f, empty)
		}
	}

	rows, err := st.InsertColumn(ctx, in, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	s.logger.Debug("column added", "tenant", tenant, "collection_id", in.CollectionID, "field_id", in.FieldID)
	return ok(rows)
}

// checkColumnOrder accepts the reserved virtual entries and the fieldIds of
// the collection's columns, each at most once.
func checkColumnOrder(op string, order, fieldIDs []string) *failure {
	known := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		known[id] = true
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return invalid("%s: columnOrder lists %q twice", op, id)
		}
		seen[id] = true
		switch {
		case id == model.OrderSelection || id == model.OrderActions:
		case !query.IsFieldID(id):
			return invalid("%s: invalid columnOrder entry %q", op, id)
		case !known[id]:
			return invalid("%s: columnOrder entry %q is not a column of the collection", op, id)
		}
	}
	return nil
}

// UpdateColumns applies a partial update to the columns of a collection
// matching where.
func (s *ContentService) UpdateColumns(ctx context.Context, tenant string, collectionID int64, where store.Where, patch model.ColumnPatch, userID string, returning []string) model.Envelope[[]model.Column] {
	const op = "update column"
	empty := []model.Column{}
	switch {
	case collectionID <= 0:
		return fail(required(op, "collectionId"), empty)
	case len(where) == 0:
		return fail(required(op, "filter"), empty)
	case patch.Empty():
		return fail(required(op, "data"), empty)
	case userID == "":
		return fail(required(op, "userId"), empty)
	}
	if f := s.check(op, patch); f != nil {
		return fail(f, empty)
	}
	if patch.Type != nil {
		if _, f := s.checkFieldType(op, *patch.Type); f != nil {
			return fail(f, empty)
		}
	}
	if patch.Validation != nil || patch.FieldOptions != nil {
		if f := checkRules(op, patch.Validation, patch.FieldOptions); f != nil {
			return fail(f, empty)
		}
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	rows, err := st.UpdateColumns(ctx, collectionID, where, patch, userID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	return ok(rows)
}

// RemoveColumns deletes the columns with the given fieldId, prunes them from
// column orders and strips their keys from document payloads. A zero
// collectionID removes the fieldId from every collection of the tenant.
func (s *ContentService) RemoveColumns(ctx context.Context, tenant, fieldID string, collectionID int64, returning []string) model.Envelope[[]model.Column] {
	const op = "remove column"
	empty := []model.Column{}
	if fieldID == "" {
		return fail(required(op, "fieldId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return fail(f, empty)
	}
	cols, err := st.GetColumn(ctx, collectionID, fieldID, []string{"type"})
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	for _, c := range cols {
		if d, found := s.types.Lookup(c.Type); found && d.System {
			return fail(invalid("%s: column %q has a system type and cannot be deleted", op, fieldID), empty)
		}
	}
	rows, err := st.RemoveColumns(ctx, fieldID, collectionID, returning)
	if err != nil {
		return fail(s.storeFailure(op, tenant, err), empty)
	}
	if len(rows) > 0 {
		s.logger.Info("columns removed", "tenant", tenant, "field_id", fieldID, "count", len(rows))
	}
	return ok(rows)
}

// SortColumn advances the sort toggle of a column (unset -> asc -> desc -> asc)
// and returns the documents view ordered by that column.
func (s *ContentService) SortColumn(ctx context.Context, tenant string, collectionID int64, fieldID, userID string, page, limit int) model.PagedEnvelope[model.DocumentsView] {
	const op = "sort column"
	empty := model.DocumentsView{}
	switch {
	case collectionID <= 0:
		return failPaged(required(op, "collectionId"), empty)
	case fieldID == "":
		return failPaged(required(op, "fieldId"), empty)
	case userID == "":
		return failPaged(required(op, "userId"), empty)
	}
	st, f := s.tenant(op, tenant)
	if f != nil {
		return failPaged(f, empty)
	}
	cols, err := st.GetColumn(ctx, collectionID, fieldID, []string{"sortBy", "enableSort"})
	if err != nil {
		return failPaged(s.storeFailure(op, tenant, err), empty)
	}
	if len(cols) == 0 {
		return failPaged(&failure{kind: model.KindNotFound, msg: op + ": column " + fieldID + " not found"}, empty)
	}
	if cols[0].EnableSort != nil && !*cols[0].EnableSort {
		return failPaged(invalid("%s: sorting is disabled for column %q", op, fieldID), empty)
	}

	next := model.NextSort(cols[0].SortBy)
	if _, err := st.UpdateColumns(ctx, collectionID, store.Where{"fieldId": fieldID},
		model.ColumnPatch{SortBy: &next}, userID, []string{"id"}); err != nil {
		return failPaged(s.storeFailure(op, tenant, err), empty)
	}
	return s.DocumentsView(ctx, tenant, store.Where{"id": collectionID}, store.ViewOptions{
		Page:  page,
		Limit: limit,
		Order: query.OrderClause{Field: fieldID, Direction: strings.ToUpper(string(next))},
	})
}
