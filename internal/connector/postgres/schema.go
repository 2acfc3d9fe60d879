package postgres

import (
	"context"
	"fmt"

	"github.com/faucetdb/basin/internal/query"
)

// provisionStatements creates the tenant schema and its three tables. Every
// statement is idempotent.
var provisionStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS %[1]s`,

	`CREATE TABLE IF NOT EXISTS %[1]s."collections" (
  "id"           BIGSERIAL PRIMARY KEY,
  "user_id"      TEXT NOT NULL DEFAULT '',
  "name"         VARCHAR(100) NOT NULL,
  "type"         TEXT NOT NULL DEFAULT 'multiple' CHECK ("type" IN ('single', 'multiple')),
  "roles"        JSONB NOT NULL DEFAULT '[]',
  "column_order" JSONB NOT NULL DEFAULT '[]',
  "published"    BOOLEAN NOT NULL DEFAULT FALSE,
  "created_at"   TIMESTAMPTZ NOT NULL DEFAULT now(),
  "created_by"   TEXT NOT NULL DEFAULT '',
  "updated_at"   TIMESTAMPTZ NOT NULL DEFAULT now(),
  "updated_by"   TEXT NOT NULL DEFAULT '',
  CONSTRAINT "collections_name_key" UNIQUE ("name")
)`,

	`CREATE TABLE IF NOT EXISTS %[1]s."collection_columns" (
  "id"            BIGSERIAL PRIMARY KEY,
  "collection_id" BIGINT NOT NULL REFERENCES %[1]s."collections" ("id"),
  "column_name"   VARCHAR(100) NOT NULL,
  "field_id"      VARCHAR(15) NOT NULL,
  "type"          TEXT NOT NULL,
  "field_options" JSONB NOT NULL DEFAULT '{}',
  "validation"    JSONB NOT NULL DEFAULT '{}',
  "help_text"     TEXT NOT NULL DEFAULT '',
  "enable_delete" BOOLEAN NOT NULL DEFAULT TRUE,
  "enable_sort"   BOOLEAN NOT NULL DEFAULT TRUE,
  "enable_hide"   BOOLEAN NOT NULL DEFAULT TRUE,
  "enable_filter" BOOLEAN NOT NULL DEFAULT TRUE,
  "sort_by"       TEXT NOT NULL DEFAULT '',
  "is_visible"    BOOLEAN NOT NULL DEFAULT TRUE,
  "index_spec"    JSONB,
  "created_at"    TIMESTAMPTZ NOT NULL DEFAULT now(),
  "created_by"    TEXT NOT NULL DEFAULT '',
  "updated_at"    TIMESTAMPTZ NOT NULL DEFAULT now(),
  "updated_by"    TEXT NOT NULL DEFAULT '',
  CONSTRAINT "collection_columns_field_key" UNIQUE ("collection_id", "field_id")
)`,

	`CREATE TABLE IF NOT EXISTS %[1]s."documents" (
  "id"            BIGSERIAL PRIMARY KEY,
  "collection_id" BIGINT NOT NULL REFERENCES %[1]s."collections" ("id"),
  "data"          JSONB NOT NULL DEFAULT '{}',
  "created_at"    TIMESTAMPTZ NOT NULL DEFAULT now(),
  "created_by"    TEXT NOT NULL DEFAULT '',
  "updated_at"    TIMESTAMPTZ NOT NULL DEFAULT now(),
  "updated_by"    TEXT NOT NULL DEFAULT ''
)`,

	`CREATE INDEX IF NOT EXISTS "documents_collection_id_idx" ON %[1]s."documents" ("collection_id")`,
}

// ProvisionSQL returns the statements that create a tenant namespace.
func (c *PostgresConnector) ProvisionSQL(namespace string) ([]string, error) {
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

// Provision creates the tenant schema and tables in one transaction.
func (c *PostgresConnector) Provision(ctx context.Context, namespace string) error {
	stmts, err := c.ProvisionSQL(namespace)
	if err != nil {
		return err
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

// Namespaces lists the schemas that hold a collections table.
func (c *PostgresConnector) Namespaces(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names, `
SELECT table_schema FROM information_schema.tables
WHERE table_name = 'collections' AND table_schema NOT IN ('pg_catalog', 'information_schema', 'public')
ORDER BY table_schema`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return names, nil
}
