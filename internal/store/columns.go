package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/model"
)

// GetColumn returns the column of a collection with the given fieldId, or
// an empty slice when there is none.
func (s *Store) GetColumn(ctx context.Context, collectionID int64, fieldID string, fields []string) ([]model.Column, error) {
	return s.FindColumns(ctx, collectionID, Where{"fieldId": fieldID}, fields)
}

// ListColumns returns every column of a collection ordered by id.
func (s *Store) ListColumns(ctx context.Context, collectionID int64, fields []string) ([]model.Column, error) {
	return s.FindColumns(ctx, collectionID, nil, fields)
}

// FindColumns returns the columns of a collection matching where. A zero
// collectionID searches every collection of the namespace.
func (s *Store) FindColumns(ctx context.Context, collectionID int64, where Where, fields []string) ([]model.Column, error) {
	sel, err := selectFields(ColumnFields, fields)
	if err != nil {
		return nil, err
	}
	p := s.conn.NewParams()
	conds := []string{}
	if collectionID > 0 {
		conds = append(conds, `cc."collection_id" = `+p.Add(collectionID))
	}
	if len(where) > 0 {
		cond, err := s.buildWhere(ColumnFields, "cc", where, p)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	q := `SELECT ` + s.conn.JSONObject("cc", sel) + ` FROM ` + s.table(connector.TableColumns) + ` cc`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY cc."id" ASC`

	rows, err := queryRows[model.Column](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("find columns", err)
	}
	return rows, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// InsertColumn inserts a column and, in the same transaction, sets the
// owning collection's column order: the order carried by the input when
// present, otherwise the current order with the new fieldId appended.
func (s *Store) InsertColumn(ctx context.Context, in model.ColumnInput, userID string, returning []string) ([]model.Column, error) {
	if in.CollectionID <= 0 {
		return nil, fmt.Errorf("%w: collection id is required", ErrInvalidArgument)
	}
	ret, err := selectFields(ColumnFields, returning)
	if err != nil {
		return nil, err
	}
	options, err := jsonArg(in.FieldOptions)
	if err != nil {
		return nil, err
	}
	rules, err := jsonArg(in.Validation)
	if err != nil {
		return nil, err
	}
	var index interface{}
	if in.Index != nil {
		v, err := jsonArg(in.Index)
		if err != nil {
			return nil, err
		}
		index = v
	}

	var out []model.Column
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := s.conn.TimeArg(s.now())
		p := s.conn.NewParams()
		values := []string{
			p.Add(in.CollectionID), p.Add(in.ColumnName), p.Add(in.FieldID), p.Add(in.Type),
			p.Add(options), p.Add(rules), p.Add(in.HelpText),
			p.Add(boolOr(in.EnableDelete, true)), p.Add(boolOr(in.EnableSort, true)),
			p.Add(boolOr(in.EnableHide, true)), p.Add(boolOr(in.EnableFilter, true)),
			p.Add(string(in.SortBy)), p.Add(boolOr(in.IsVisible, true)), p.Add(index),
			p.Add(now), p.Add(userID), p.Add(now), p.Add(userID),
		}
		q := `INSERT INTO ` + s.table(connector.TableColumns) +
			` ("collection_id", "column_name", "field_id", "type", "field_options", "validation", "help_text",` +
			` "enable_delete", "enable_sort", "enable_hide", "enable_filter", "sort_by", "is_visible", "index_spec",` +
			` "created_at", "created_by", "updated_at", "updated_by")` +
			` VALUES (` + strings.Join(values, ", ") + `) RETURNING ` + s.conn.JSONObject("", ret)

		rows, err := queryRows[model.Column](ctx, tx, q, p.Args())
		if err != nil {
			return err
		}
		out = rows

		order := in.ColumnOrder
		if order == nil {
			current, err := s.collectionColumnOrder(ctx, tx, in.CollectionID)
			if err != nil {
				return err
			}
			order = appendUnique(current, in.FieldID)
		}
		return s.setColumnOrder(ctx, tx, in.CollectionID, order, userID, true)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, s.wrap("insert column", err)
	}
	return out, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// UpdateColumns applies a partial update to the columns of a collection
// matching where and re-stamps updated_at/updated_by.
func (s *Store) UpdateColumns(ctx context.Context, collectionID int64, where Where, patch model.ColumnPatch, userID string, returning []string) ([]model.Column, error) {
	if collectionID <= 0 {
		return nil, fmt.Errorf("%w: collection id is required", ErrInvalidArgument)
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("%w: update requires a filter", ErrInvalidArgument)
	}
	ret, err := selectFields(ColumnFields, returning)
	if err != nil {
		return nil, err
	}

	p := s.conn.NewParams()
	var sets []string
	set := func(col string, v interface{}) {
		sets = append(sets, s.quote(col)+" = "+p.Add(v))
	}
	setJSON := func(col string, v interface{}) error {
		raw, err := jsonArg(v)
		if err != nil {
			return err
		}
		set(col, raw)
		return nil
	}
	if patch.ColumnName != nil {
		set("column_name", *patch.ColumnName)
	}
	if patch.Type != nil {
		set("type", *patch.Type)
	}
	if patch.FieldOptions != nil {
		if err := setJSON("field_options", patch.FieldOptions); err != nil {
			return nil, err
		}
	}
	if patch.Validation != nil {
		if err := setJSON("validation", patch.Validation); err != nil {
			return nil, err
		}
	}
	if patch.HelpText != nil {
		set("help_text", *patch.HelpText)
	}
	for _, f := range []struct {
		col  string
		flag *bool
	}{
		{"enable_delete", patch.EnableDelete},
		{"enable_sort", patch.EnableSort},
		{"enable_hide", patch.EnableHide},
		{"enable_filter", patch.EnableFilter},
		{"is_visible", patch.IsVisible},
	} {
		if f.flag != nil {
			set(f.col, *f.flag)
		}
	}
	if patch.SortBy != nil {
		set("sort_by", string(*patch.SortBy))
	}
	if patch.Index != nil {
		if err := setJSON("index_spec", patch.Index); err != nil {
			return nil, err
		}
	}
	set("updated_at", s.conn.TimeArg(s.now()))
	set("updated_by", userID)

	cond, err := s.buildWhere(ColumnFields, "", where, p)
	if err != nil {
		return nil, err
	}
	q := `UPDATE ` + s.table(connector.TableColumns) + ` SET ` + strings.Join(sets, ", ") +
		` WHERE "collection_id" = ` + p.Add(collectionID) + ` AND ` + cond +
		` RETURNING ` + s.conn.JSONObject("", ret)

	rows, err := queryRows[model.Column](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("update columns", err)
	}
	return rows, nil
}

// RemoveColumns deletes the columns with the given fieldId, optionally
// limited to one collection, in a three-step transaction: delete the rows,
// prune the fieldId from each affected collection's column order, and strip
// the key from every document payload of those collections.
func (s *Store) RemoveColumns(ctx context.Context, fieldID string, collectionID int64, returning []string) ([]model.Column, error) {
	if fieldID == "" {
		return nil, fmt.Errorf("%w: fieldId is required", ErrInvalidArgument)
	}
	ret, err := selectFields(ColumnFields, returning)
	if err != nil {
		return nil, err
	}

	out := []model.Column{}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		p := s.conn.NewParams()
		q := `DELETE FROM ` + s.table(connector.TableColumns) + ` WHERE "field_id" = ` + p.Add(fieldID)
		if collectionID > 0 {
			q += ` AND "collection_id" = ` + p.Add(collectionID)
		}
		q += ` RETURNING ` + s.conn.JSONObject("", ret) + ` AS "row", "collection_id" AS "collection_id"`

		var deleted []struct {
			Row          string `db:"row"`
			CollectionID int64  `db:"collection_id"`
		}
		if err := tx.SelectContext(ctx, &deleted, q, p.Args()...); err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}

		raws := make([]string, len(deleted))
		var affected []int64
		seen := map[int64]bool{}
		for i, d := range deleted {
			raws[i] = d.Row
			if !seen[d.CollectionID] {
				seen[d.CollectionID] = true
				affected = append(affected, d.CollectionID)
			}
		}
		rows, err := decodeRows[model.Column](raws)
		if err != nil {
			return err
		}
		out = rows

		for _, id := range affected {
			order, err := s.collectionColumnOrder(ctx, tx, id)
			if err != nil {
				return err
			}
			pruned := make([]string, 0, len(order))
			for _, f := range order {
				if f != fieldID {
					pruned = append(pruned, f)
				}
			}
			if err := s.setColumnOrder(ctx, tx, id, pruned, "", false); err != nil {
				return err
			}
		}

		dp := s.conn.NewParams()
		key := dp.Add(s.conn.JSONKeyArg(fieldID))
		data := s.quote("data")
		strip := `UPDATE ` + s.table(connector.TableDocuments) + ` SET ` + data + ` = ` + s.conn.JSONRemoveKey(data, key) +
			` WHERE ` + s.inList(`"collection_id"`, int64Args(affected), dp) + ` AND ` + s.conn.JSONHasKey(data, key)
		_, err = tx.ExecContext(ctx, strip, dp.Args()...)
		return err
	})
	if err != nil {
		return nil, s.wrap("remove columns", err)
	}
	return out, nil
}
