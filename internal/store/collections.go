package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
)

// ListOptions selects one page of rows.
type ListOptions struct {
	Page   int
	Limit  int
	Fields []string
	// Order optionally sorts on a relational field; rows default to id ASC.
	Order query.OrderClause
}

// ListCollections returns one page of collections.
func (s *Store) ListCollections(ctx context.Context, opts ListOptions) ([]model.Collection, error) {
	fields, err := selectFields(CollectionFields, opts.Fields)
	if err != nil {
		return nil, err
	}
	order := `c."id" ASC`
	if opts.Order.Field != "" {
		f, ok := lookupField(CollectionFields, opts.Order.Field)
		if !ok || f.Kind == connector.KindJSON {
			return nil, fmt.Errorf("%w: cannot order collections by %q", ErrInvalidArgument, opts.Order.Field)
		}
		order = `c.` + s.quote(f.Column) + ` ` + opts.Order.Suffix()
		if f.Column != "id" {
			order += `, c."id" ASC`
		}
	}

	limit, offset := query.Paginate(opts.Page, opts.Limit)
	p := s.conn.NewParams()
	q := `SELECT ` + s.conn.JSONObject("c", fields) + ` FROM ` + s.table(connector.TableCollections) + ` c` +
		` ORDER BY ` + order + ` LIMIT ` + p.Add(limit) + ` OFFSET ` + p.Add(offset)

	rows, err := queryRows[model.Collection](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("list collections", err)
	}
	return rows, nil
}

// CountCollections returns the number of collections in the namespace.
func (s *Store) CountCollections(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.DB().GetContext(ctx, &n, `SELECT COUNT(*) FROM `+s.table(connector.TableCollections)); err != nil {
		return 0, s.wrap("count collections", err)
	}
	return n, nil
}

// GetCollectionByName returns the collection with the given name.
func (s *Store) GetCollectionByName(ctx context.Context, name string, fields []string) (*model.Collection, error) {
	rows, err := s.FindCollections(ctx, Where{"name": name}, fields)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// FindCollections returns every collection matching where, ordered by id.
func (s *Store) FindCollections(ctx context.Context, where Where, fields []string) ([]model.Collection, error) {
	sel, err := selectFields(CollectionFields, fields)
	if err != nil {
		return nil, err
	}
	p := s.conn.NewParams()
	q := `SELECT ` + s.conn.JSONObject("c", sel) + ` FROM ` + s.table(connector.TableCollections) + ` c`
	if len(where) > 0 {
		cond, err := s.buildWhere(CollectionFields, "c", where, p)
		if err != nil {
			return nil, err
		}
		q += ` WHERE ` + cond
	}
	q += ` ORDER BY c."id" ASC`

	rows, err := queryRows[model.Collection](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("find collections", err)
	}
	return rows, nil
}

// InsertCollection inserts a collection stamped with userID and returns the
// requested fields of the new row.
func (s *Store) InsertCollection(ctx context.Context, in model.CollectionInput, userID string, returning []string) ([]model.Collection, error) {
	ret, err := selectFields(CollectionFields, returning)
	if err != nil {
		return nil, err
	}
	roles, err := jsonArg(in.Roles)
	if err != nil {
		return nil, err
	}
	order, err := jsonArg(in.ColumnOrder)
	if err != nil {
		return nil, err
	}
	now := s.conn.TimeArg(s.now())

	p := s.conn.NewParams()
	values := []string{
		p.Add(userID), p.Add(in.Name), p.Add(string(in.Type)), p.Add(roles), p.Add(order),
		p.Add(in.Published), p.Add(now), p.Add(userID), p.Add(now), p.Add(userID),
	}
	q := `INSERT INTO ` + s.table(connector.TableCollections) +
		` ("user_id", "name", "type", "roles", "column_order", "published", "created_at", "created_by", "updated_at", "updated_by")` +
		` VALUES (` + strings.Join(values, ", ") + `) RETURNING ` + s.conn.JSONObject("", ret)

	rows, err := queryRows[model.Collection](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("insert collection", err)
	}
	return rows, nil
}

// UpdateCollection applies a partial update to the collection with the
// given id and re-stamps updated_at/updated_by. No row is returned when the
// id does not exist.
func (s *Store) UpdateCollection(ctx context.Context, id int64, patch model.CollectionPatch, userID string, returning []string) ([]model.Collection, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: collection id is required", ErrInvalidArgument)
	}
	ret, err := selectFields(CollectionFields, returning)
	if err != nil {
		return nil, err
	}

	p := s.conn.NewParams()
	var sets []string
	set := func(col string, v interface{}) {
		sets = append(sets, s.quote(col)+" = "+p.Add(v))
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Type != nil {
		set("type", string(*patch.Type))
	}
	if patch.Roles != nil {
		v, err := jsonArg(patch.Roles)
		if err != nil {
			return nil, err
		}
		set("roles", v)
	}
	if patch.ColumnOrder != nil {
		v, err := jsonArg(patch.ColumnOrder)
		if err != nil {
			return nil, err
		}
		set("column_order", v)
	}
	if patch.Published != nil {
		set("published", *patch.Published)
	}
	set("updated_at", s.conn.TimeArg(s.now()))
	set("updated_by", userID)

	q := `UPDATE ` + s.table(connector.TableCollections) + ` SET ` + strings.Join(sets, ", ") +
		` WHERE "id" = ` + p.Add(id) + ` RETURNING ` + s.conn.JSONObject("", ret)

	rows, err := queryRows[model.Collection](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("update collection", err)
	}
	return rows, nil
}

// DeleteCollections deletes every collection matching where together with
// its columns and documents, in one transaction. An empty filter is refused.
func (s *Store) DeleteCollections(ctx context.Context, where Where, returning []string) ([]model.Collection, error) {
	if len(where) == 0 {
		return nil, fmt.Errorf("%w: delete requires a filter", ErrInvalidArgument)
	}
	ret, err := selectFields(CollectionFields, returning)
	if err != nil {
		return nil, err
	}

	var out []model.Collection
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		p := s.conn.NewParams()
		cond, err := s.buildWhere(CollectionFields, "", where, p)
		if err != nil {
			return err
		}
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, `SELECT "id" FROM `+s.table(connector.TableCollections)+` WHERE `+cond, p.Args()...); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		vals := int64Args(ids)
		for _, table := range []string{connector.TableDocuments, connector.TableColumns} {
			dp := s.conn.NewParams()
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.table(table)+` WHERE `+s.inList(`"collection_id"`, vals, dp), dp.Args()...); err != nil {
				return err
			}
		}

		cp := s.conn.NewParams()
		q := `DELETE FROM ` + s.table(connector.TableCollections) + ` WHERE ` + s.inList(`"id"`, vals, cp) +
			` RETURNING ` + s.conn.JSONObject("", ret)
		out, err = queryRows[model.Collection](ctx, tx, q, cp.Args())
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return nil, err
		}
		return nil, s.wrap("delete collections", err)
	}
	if out == nil {
		out = []model.Collection{}
	}
	return out, nil
}

// collectionColumnOrder reads the column order of a collection inside tx.
func (s *Store) collectionColumnOrder(ctx context.Context, tx *sqlx.Tx, id int64) ([]string, error) {
	var raw sql.NullString
	p := s.conn.NewParams()
	err := tx.GetContext(ctx, &raw, `SELECT `+s.quote("column_order")+` FROM `+s.table(connector.TableCollections)+
		` WHERE "id" = `+p.Add(id), p.Args()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	order := []string{}
	if raw.Valid && raw.String != "" {
		if err := jsonUnmarshalString(raw.String, &order); err != nil {
			return nil, fmt.Errorf("decode column order: %w", err)
		}
	}
	return order, nil
}

func (s *Store) setColumnOrder(ctx context.Context, tx *sqlx.Tx, id int64, order []string, userID string, touch bool) error {
	v, err := jsonArg(order)
	if err != nil {
		return err
	}
	p := s.conn.NewParams()
	sets := s.quote("column_order") + ` = ` + p.Add(v)
	if touch {
		sets += `, "updated_at" = ` + p.Add(s.conn.TimeArg(s.now())) + `, "updated_by" = ` + p.Add(userID)
	}
	_, err = tx.ExecContext(ctx, `UPDATE `+s.table(connector.TableCollections)+` SET `+sets+` WHERE "id" = `+p.Add(id), p.Args()...)
	return err
}
