package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/query"
)

// timeLayout is fixed width so that stored timestamps sort lexically in
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteConnector implements connector.Connector for SQLite. Each tenant
// namespace is a separate database ATTACHed to the one pooled connection.
type SQLiteConnector struct {
	db      *sqlx.DB
	dataDir string
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{}
}

// Connect opens the host database named by the DSN (":memory:" when empty).
// Attached databases belong to a single connection, so the pool is pinned
// to one connection that never expires. When cfg.DataDir is set, every
// tenant database file already in it is attached.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	c.db = db
	c.dataDir = cfg.DataDir

	if c.dataDir != "" {
		if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
			db.Close()
			return fmt.Errorf("sqlite create data dir: %w", err)
		}
		if err := c.attachExisting(context.Background()); err != nil {
			db.Close()
			return err
		}
	}
	return nil
}

func (c *SQLiteConnector) attachExisting(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(c.dataDir, "*.db"))
	if err != nil {
		return fmt.Errorf("sqlite scan data dir: %w", err)
	}
	for _, f := range files {
		ns := strings.TrimSuffix(filepath.Base(f), ".db")
		if query.ValidateNamespace(ns) != nil {
			continue
		}
		if err := c.attach(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a numbered SQLite parameter (?1, ?2, ...).
// Numbered parameters can be repeated within a statement.
func (c *SQLiteConnector) ParameterPlaceholder(index int) string {
	return query.NumberedPlaceholder(index)
}

// NewParams returns a parameter accumulator using ?N placeholders.
func (c *SQLiteConnector) NewParams() *query.Params {
	return query.NewParams(query.NumberedPlaceholder)
}

// Table returns the database-qualified, quoted name of a tenant table.
func (c *SQLiteConnector) Table(namespace, table string) string {
	return c.QuoteIdentifier(namespace) + "." + c.QuoteIdentifier(table)
}

// TimeArg binds timestamps as fixed-width UTC text.
func (c *SQLiteConnector) TimeArg(t time.Time) interface{} {
	return t.UTC().Format(timeLayout)
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func (c *SQLiteConnector) IsUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary result code only; the message names the constraint kind.
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}
