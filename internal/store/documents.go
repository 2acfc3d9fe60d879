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

// ViewOptions selects the page and order of a documents view.
type ViewOptions struct {
	Page  int
	Limit int
	Order query.OrderClause
}

// ResolveCollectionID returns the id of the first collection matching
// where, or 0 when none does.
func (s *Store) ResolveCollectionID(ctx context.Context, where Where) (int64, error) {
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: collection filter is required", ErrInvalidArgument)
	}
	p := s.conn.NewParams()
	cond, err := s.buildWhere(CollectionFields, "", where, p)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.conn.DB().GetContext(ctx, &id, `SELECT "id" FROM `+s.table(connector.TableCollections)+
		` WHERE `+cond+` ORDER BY "id" ASC LIMIT 1`, p.Args()...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, s.wrap("resolve collection", err)
	}
	return id, nil
}

// FieldIDs returns the fieldIds of a collection's columns.
func (s *Store) FieldIDs(ctx context.Context, collectionID int64) ([]string, error) {
	var ids []string
	p := s.conn.NewParams()
	err := s.conn.DB().SelectContext(ctx, &ids, `SELECT "field_id" FROM `+s.table(connector.TableColumns)+
		` WHERE "collection_id" = `+p.Add(collectionID)+` ORDER BY "id" ASC`, p.Args()...)
	if err != nil {
		return nil, s.wrap("list field ids", err)
	}
	return ids, nil
}

// orderTerm maps a requested order onto the relational audit columns or,
// for any other field, onto a payload key that must be one of fieldIDs.
func orderTerm(order query.OrderClause, fieldIDs []string) (connector.OrderTerm, error) {
	term := connector.OrderTerm{Direction: order.Direction, Nulls: order.Nulls}
	if term.Direction == "" {
		term.Direction = "ASC"
	}
	if col, ok := sortableAuditColumns[order.Field]; ok {
		term.Column = col
		return term, nil
	}
	for _, id := range fieldIDs {
		if id == order.Field {
			term.JSONKey = id
			return term, nil
		}
	}
	return term, fmt.Errorf("%w: cannot sort by %q: not a field of this collection", ErrInvalidArgument, order.Field)
}

// DocumentsView resolves the collection matching where and returns it with
// its columns, one ordered page of flattened documents, and the total number
// of documents in the collection. An unknown collection yields an empty view
// and a zero total.
func (s *Store) DocumentsView(ctx context.Context, where Where, opts ViewOptions) (model.DocumentsView, int64, error) {
	var view model.DocumentsView

	id, err := s.ResolveCollectionID(ctx, where)
	if err != nil || id == 0 {
		return view, 0, err
	}

	var terms []connector.OrderTerm
	if opts.Order.Field != "" {
		fieldIDs, err := s.FieldIDs(ctx, id)
		if err != nil {
			return view, 0, err
		}
		term, err := orderTerm(opts.Order, fieldIDs)
		if err != nil {
			return view, 0, err
		}
		terms = append(terms, term)
	}

	limit, offset := query.Paginate(opts.Page, opts.Limit)
	q, args, err := s.conn.BuildDocumentsView(connector.ViewRequest{
		Namespace:        s.namespace,
		CollectionID:     id,
		CollectionFields: CollectionFields,
		ColumnFields:     ColumnFields,
		DocumentFields:   viewDocumentFields,
		Order:            terms,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return view, 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var row struct {
		Collection sql.NullString `db:"collection"`
		Columns    sql.NullString `db:"columns"`
		Documents  sql.NullString `db:"documents"`
	}
	err = s.conn.DB().GetContext(ctx, &row, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted between resolution and read.
		return view, 0, nil
	}
	if err != nil {
		return view, 0, s.wrap("documents view", err)
	}

	var collection model.Collection
	if err := jsonUnmarshalString(row.Collection.String, &collection); err != nil {
		return view, 0, fmt.Errorf("decode collection: %w", err)
	}
	view.Collection = &collection
	view.Columns = []model.Column{}
	if row.Columns.Valid {
		if err := jsonUnmarshalString(row.Columns.String, &view.Columns); err != nil {
			return view, 0, fmt.Errorf("decode columns: %w", err)
		}
	}
	view.Documents = []map[string]interface{}{}
	if row.Documents.Valid {
		var docs []model.Document
		if err := jsonUnmarshalString(row.Documents.String, &docs); err != nil {
			return view, 0, fmt.Errorf("decode documents: %w", err)
		}
		for _, d := range docs {
			view.Documents = append(view.Documents, d.Flatten())
		}
	}

	total, err := s.CountDocuments(ctx, id)
	if err != nil {
		return view, 0, err
	}
	return view, total, nil
}

// CountDocuments returns the number of documents in a collection.
func (s *Store) CountDocuments(ctx context.Context, collectionID int64) (int64, error) {
	var n int64
	p := s.conn.NewParams()
	err := s.conn.DB().GetContext(ctx, &n, `SELECT COUNT(*) FROM `+s.table(connector.TableDocuments)+
		` WHERE "collection_id" = `+p.Add(collectionID), p.Args()...)
	if err != nil {
		return 0, s.wrap("count documents", err)
	}
	return n, nil
}

// GetDocument returns the document with the given id.
func (s *Store) GetDocument(ctx context.Context, id int64, fields []string) (*model.Document, error) {
	sel, err := selectFields(DocumentFields, fields)
	if err != nil {
		return nil, err
	}
	p := s.conn.NewParams()
	q := `SELECT ` + s.conn.JSONObject("d", sel) + ` FROM ` + s.table(connector.TableDocuments) +
		` d WHERE d."id" = ` + p.Add(id)
	rows, err := queryRows[model.Document](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("get document", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// InsertDocuments inserts a batch of payloads into a collection with one
// statement. Every row carries the same audit stamp.
func (s *Store) InsertDocuments(ctx context.Context, collectionID int64, docs []map[string]interface{}, userID string, returning []string) ([]model.Document, error) {
	if collectionID <= 0 {
		return nil, fmt.Errorf("%w: collection id is required", ErrInvalidArgument)
	}
	if len(docs) == 0 {
		return []model.Document{}, nil
	}
	ret, err := selectFields(DocumentFields, returning)
	if err != nil {
		return nil, err
	}

	now := s.conn.TimeArg(s.now())
	p := s.conn.NewParams()
	tuples := make([]string, 0, len(docs))
	for _, doc := range docs {
		data, err := jsonArg(doc)
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, "("+strings.Join([]string{
			p.Add(collectionID), p.Add(data), p.Add(now), p.Add(userID), p.Add(now), p.Add(userID),
		}, ", ")+")")
	}
	q := `INSERT INTO ` + s.table(connector.TableDocuments) +
		` ("collection_id", "data", "created_at", "created_by", "updated_at", "updated_by") VALUES ` +
		strings.Join(tuples, ", ") + ` RETURNING ` + s.conn.JSONObject("", ret)

	rows, err := queryRows[model.Document](ctx, s.conn.DB(), q, p.Args())
	if err != nil {
		return nil, s.wrap("insert documents", err)
	}
	return rows, nil
}

// UpdateDocument shallow-merges partial into the stored payload of a
// document: supplied keys overwrite, absent keys are kept. The read and the
// write run in one transaction; concurrent updates are last-writer-wins.
// No row is returned when the id does not exist.
func (s *Store) UpdateDocument(ctx context.Context, id int64, partial map[string]interface{}, userID string, returning []string) ([]model.Document, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidArgument)
	}
	ret, err := selectFields(DocumentFields, returning)
	if err != nil {
		return nil, err
	}

	out := []model.Document{}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		p := s.conn.NewParams()
		var raw string
		err := tx.GetContext(ctx, &raw, `SELECT `+s.quote("data")+` FROM `+s.table(connector.TableDocuments)+
			` WHERE "id" = `+p.Add(id), p.Args()...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		merged := map[string]interface{}{}
		if raw != "" {
			if err := jsonUnmarshalString(raw, &merged); err != nil {
				return fmt.Errorf("decode document data: %w", err)
			}
		}
		for k, v := range partial {
			merged[k] = v
		}
		data, err := jsonArg(merged)
		if err != nil {
			return err
		}

		up := s.conn.NewParams()
		q := `UPDATE ` + s.table(connector.TableDocuments) + ` SET "data" = ` + up.Add(data) +
			`, "updated_at" = ` + up.Add(s.conn.TimeArg(s.now())) + `, "updated_by" = ` + up.Add(userID) +
			` WHERE "id" = ` + up.Add(id) + ` RETURNING ` + s.conn.JSONObject("", ret)
		out, err = queryRows[model.Document](ctx, tx, q, up.Args())
		return err
	})
	if err != nil {
		return nil, s.wrap("update document", err)
	}
	return out, nil
}

// RemoveDocuments deletes documents by id, one statement per id, and
// returns the concatenated deleted rows. Unknown ids contribute nothing.
func (s *Store) RemoveDocuments(ctx context.Context, ids []int64, returning []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: document ids are required", ErrInvalidArgument)
	}
	ret, err := selectFields(DocumentFields, returning)
	if err != nil {
		return nil, err
	}

	out := []model.Document{}
	for _, id := range ids {
		p := s.conn.NewParams()
		q := `DELETE FROM ` + s.table(connector.TableDocuments) + ` WHERE "id" = ` + p.Add(id) +
			` RETURNING ` + s.conn.JSONObject("", ret)
		rows, err := queryRows[model.Document](ctx, s.conn.DB(), q, p.Args())
		if err != nil {
			return out, s.wrap(fmt.Sprintf("remove document %d", id), err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
