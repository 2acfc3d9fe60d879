package sqlite

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/faucetdb/basin/internal/query"
)

// provisionStatements create the tables of one attached tenant database.
// Foreign keys reference unqualified names, which SQLite resolves inside the
// same database.
var provisionStatements = []string{
	`CREATE TABLE IF NOT EXISTS %[1]s."collections" (
  "id"           INTEGER PRIMARY KEY AUTOINCREMENT,
  "user_id"      TEXT NOT NULL DEFAULT '',
  "name"         TEXT NOT NULL CHECK (length("name") BETWEEN 1 AND 100),
  "type"         TEXT NOT NULL DEFAULT 'multiple' CHECK ("type" IN ('single', 'multiple')),
  "roles"        TEXT NOT NULL DEFAULT '[]',
  "column_order" TEXT NOT NULL DEFAULT '[]',
  "published"    INTEGER NOT NULL DEFAULT 0,
  "created_at"   TEXT NOT NULL,
  "created_by"   TEXT NOT NULL DEFAULT '',
  "updated_at"   TEXT NOT NULL,
  "updated_by"   TEXT NOT NULL DEFAULT '',
  UNIQUE ("name")
)`,

	`CREATE TABLE IF NOT EXISTS %[1]s."collection_columns" (
  "id"            INTEGER PRIMARY KEY AUTOINCREMENT,
  "collection_id" INTEGER NOT NULL REFERENCES "collections" ("id"),
  "column_name"   TEXT NOT NULL CHECK (length("column_name") BETWEEN 1 AND 100),
  "field_id"      TEXT NOT NULL CHECK (length("field_id") BETWEEN 1 AND 15),
  "type"          TEXT NOT NULL,
  "field_options" TEXT NOT NULL DEFAULT '{}',
  "validation"    TEXT NOT NULL DEFAULT '{}',
  "help_text"     TEXT NOT NULL DEFAULT '',
  "enable_delete" INTEGER NOT NULL DEFAULT 1,
  "enable_sort"   INTEGER NOT NULL DEFAULT 1,
  "enable_hide"   INTEGER NOT NULL DEFAULT 1,
  "enable_filter" INTEGER NOT NULL DEFAULT 1,
  "sort_by"       TEXT NOT NULL DEFAULT '',
  "is_visible"    INTEGER NOT NULL DEFAULT 1,
  "index_spec"    TEXT,
  "created_at"    TEXT NOT NULL,
  "created_by"    TEXT NOT NULL DEFAULT '',
  "updated_at"    TEXT NOT NULL,
  "updated_by"    TEXT NOT NULL DEFAULT '',
  UNIQUE ("collection_id", "field_id")
)`,

	`CREATE TABLE IF NOT EXISTS %[1]s."documents" (
  "id"            INTEGER PRIMARY KEY AUTOINCREMENT,
  "collection_id" INTEGER NOT NULL REFERENCES "collections" ("id"),
  "data"          TEXT NOT NULL DEFAULT '{}',
  "created_at"    TEXT NOT NULL,
  "created_by"    TEXT NOT NULL DEFAULT '',
  "updated_at"    TEXT NOT NULL,
  "updated_by"    TEXT NOT NULL DEFAULT ''
)`,

	`CREATE INDEX IF NOT EXISTS %[1]s."documents_collection_id_idx" ON "documents" ("collection_id")`,
}

// ProvisionSQL returns the table statements for a tenant database.
func (c *SQLiteConnector) ProvisionSQL(namespace string) ([]string, error) {
	if err := query.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	quoted := c.QuoteIdentifier(namespace)
	out := make([]string, len(provisionStatements))
	for i, stmt := range provisionStatements {
		out[i] = fmt.Sprintf(stmt, quoted)
	}
	return out, nil
}

func (c *SQLiteConnector) attached(ctx context.Context, namespace string) (bool, error) {
	var n int
	err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pragma_database_list WHERE name = ?1`, namespace)
	if err != nil {
		return false, fmt.Errorf("sqlite database list: %w", err)
	}
	return n > 0, nil
}

// attach must run outside a transaction.
func (c *SQLiteConnector) attach(ctx context.Context, namespace string) error {
	ok, err := c.attached(ctx, namespace)
	if err != nil || ok {
		return err
	}
	path := ":memory:"
	if c.dataDir != "" {
		path = filepath.Join(c.dataDir, namespace+".db")
	}
	if _, err := c.db.ExecContext(ctx, `ATTACH DATABASE ?1 AS `+c.QuoteIdentifier(namespace), path); err != nil {
		return fmt.Errorf("attach %q: %w", namespace, err)
	}
	return nil
}

// Provision attaches the tenant database and creates its tables.
func (c *SQLiteConnector) Provision(ctx context.Context, namespace string) error {
	stmts, err := c.ProvisionSQL(namespace)
	if err != nil {
		return err
	}
	if err := c.attach(ctx, namespace); err != nil {
		return fmt.Errorf("provision %q: %w", namespace, err)
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("provision %q: begin: %w", namespace, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("provision %q: %w", namespace, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("provision %q: commit: %w", namespace, err)
	}
	return nil
}

// Namespaces lists the attached tenant databases.
func (c *SQLiteConnector) Namespaces(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names,
		`SELECT name FROM pragma_database_list WHERE name NOT IN ('main', 'temp') ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return names, nil
}
