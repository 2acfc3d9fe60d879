// Package store implements the content DAOs of one tenant namespace:
// collections, their columns and their documents. Every read returns rows
// as JSON objects rendered by the dialect, so Postgres and SQLite share one
// decoding path.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/query"
)

var (
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidArgument is returned for malformed filters, selections or orders.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Where is an equality filter keyed by JSON field name or column name.
// A nil value matches NULL; a slice value matches any of its elements.
type Where map[string]interface{}

// Store is the DAO set of one tenant namespace.
type Store struct {
	conn      connector.Connector
	namespace string
	now       func() time.Time
}

// New returns the store of a tenant namespace. The namespace is not
// provisioned here; see Provision.
func New(conn connector.Connector, namespace string) (*Store, error) {
	if err := query.ValidateNamespace(namespace); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return &Store{
		conn:      conn,
		namespace: namespace,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Namespace returns the tenant namespace the store operates on.
func (s *Store) Namespace() string { return s.namespace }

func (s *Store) table(name string) string {
	return s.conn.Table(s.namespace, name)
}

func (s *Store) quote(name string) string {
	return s.conn.QuoteIdentifier(name)
}

// wrap attaches the operation name and maps unique violations to ErrDuplicate.
func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.conn.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.conn.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// selectFields resolves a requested field list against a table's fields.
// An empty request selects every field.
func selectFields(all []connector.Field, requested []string) ([]connector.Field, error) {
	if len(requested) == 0 {
		return all, nil
	}
	out := make([]connector.Field, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		f, ok := lookupField(all, name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidArgument, name)
		}
		if seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		out = append(out, f)
	}
	return out, nil
}

func lookupField(all []connector.Field, name string) (connector.Field, bool) {
	for _, f := range all {
		if f.Key == name || f.Column == name {
			return f, true
		}
	}
	return connector.Field{}, false
}

// buildWhere renders an equality filter over a table's non-JSON fields,
// with keys in sorted order so the statement text is deterministic.
func (s *Store) buildWhere(all []connector.Field, alias string, w Where, p *query.Params) (string, error) {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		f, ok := lookupField(all, k)
		if !ok {
			return "", fmt.Errorf("%w: unknown filter field %q", ErrInvalidArgument, k)
		}
		if f.Kind == connector.KindJSON {
			return "", fmt.Errorf("%w: cannot filter on JSON field %q", ErrInvalidArgument, k)
		}
		col := connector.Qualify(alias, s.quote(f.Column))

		switch v := w[k].(type) {
		case nil:
			parts = append(parts, col+" IS NULL")
		case []int64:
			parts = append(parts, s.inList(col, int64Args(v), p))
		case []string:
			vals := make([]interface{}, len(v))
			for i := range v {
				vals[i] = v[i]
			}
			parts = append(parts, s.inList(col, vals, p))
		case []interface{}:
			parts = append(parts, s.inList(col, v, p))
		case time.Time:
			parts = append(parts, col+" = "+p.Add(s.conn.TimeArg(v)))
		default:
			parts = append(parts, col+" = "+p.Add(v))
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (s *Store) inList(col string, vals []interface{}, p *query.Params) string {
	if len(vals) == 0 {
		return "1 = 0"
	}
	phs := make([]string, len(vals))
	for i, v := range vals {
		phs[i] = p.Add(v)
	}
	return col + " IN (" + strings.Join(phs, ", ") + ")"
}

// decodeRows decodes JSON object rows into T.
func decodeRows[T any](raws []string) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// queryRows runs a statement whose single result column is a JSON object
// and decodes every row into T.
func queryRows[T any](ctx context.Context, q sqlx.QueryerContext, sqlText string, args []interface{}) ([]T, error) {
	var raws []string
	if err := sqlx.SelectContext(ctx, q, &raws, sqlText, args...); err != nil {
		return nil, err
	}
	return decodeRows[T](raws)
}

func int64Args(ids []int64) []interface{} {
	vals := make([]interface{}, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return vals
}

func jsonUnmarshalString(raw string, v interface{}) error {
	return json.Unmarshal([]byte(raw), v)
}

// jsonArg encodes v for a JSON column. Nil slices and maps are stored as
// empty containers.
func jsonArg(v interface{}) (string, error) {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return "[]", nil
		}
	case map[string]interface{}:
		if x == nil {
			return "{}", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(b), nil
}
