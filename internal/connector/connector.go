package connector

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/basin/internal/query"
)

// Tables created in every tenant namespace.
const (
	TableCollections = "collections"
	TableColumns     = "collection_columns"
	TableDocuments   = "documents"
)

// FieldKind tells a dialect how to render a column inside a JSON object.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindJSON
	KindBool
	KindTime
)

// Field maps a camelCase JSON key to a table column.
type Field struct {
	Key    string
	Column string
	Kind   FieldKind
}

// OrderTerm is one ORDER BY term of the documents view. Exactly one of
// Column (a relational column) and JSONKey (a key of the data payload) is set.
type OrderTerm struct {
	Column    string
	JSONKey   string
	Direction string // "ASC" or "DESC"
	Nulls     string // "", "FIRST" or "LAST"
}

// ViewRequest describes the combined collection/columns/documents read.
type ViewRequest struct {
	Namespace        string
	CollectionID     int64
	CollectionFields []Field
	ColumnFields     []Field
	DocumentFields   []Field
	Order            []OrderTerm
	Limit            int
	Offset           int
}

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	DataDir         string // SQLite: directory holding one database file per tenant; empty keeps tenants in memory
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Connector is the interface that every content store dialect implements.
// Dialects only render SQL fragments and manage namespaces; statements are
// assembled and executed by the store.
type Connector interface {
	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// Tenant namespaces
	Provision(ctx context.Context, namespace string) error
	Namespaces(ctx context.Context) ([]string, error)
	Table(namespace, table string) string

	// SQL fragments
	JSONObject(alias string, fields []Field) string
	JSONRemoveKey(expr, keyParam string) string
	JSONHasKey(expr, keyParam string) string
	JSONKeyArg(key string) interface{}
	TimeArg(t time.Time) interface{}
	OrderExpr(alias string, term OrderTerm, p *query.Params) string
	BuildDocumentsView(req ViewRequest) (string, []interface{}, error)

	// Errors
	IsUniqueViolation(err error) bool

	// Metadata
	DriverName() string
	QuoteIdentifier(name string) string
	ParameterPlaceholder(index int) string
	NewParams() *query.Params
}

// Qualify prefixes a quoted column with a table alias when one is given.
func Qualify(alias, quotedColumn string) string {
	if alias == "" {
		return quotedColumn
	}
	return alias + "." + quotedColumn
}

// ObjectPairs renders the 'key', expr argument list of a JSON object
// constructor, delegating the per-field expression to the dialect.
func ObjectPairs(fields []Field, expr func(Field) string) string {
	parts := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		parts = append(parts, "'"+f.Key+"'", expr(f))
	}
	return strings.Join(parts, ", ")
}

// SanitizeDSN ensures that URL-style DSNs (postgres://) have their userinfo
// (especially the password) properly percent-encoded. Raw passwords
// containing @, #, % or other URL-special characters otherwise make the URL
// parser mis-split the authority component. SQLite paths are returned
// unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres":
		return sanitizeURLDSN(dsn)
	default:
		return dsn
	}
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn // key=value DSN, return as-is
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Everything before the LAST '@' is userinfo.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	return scheme + "://" + url.PathEscape(user) + ":" + url.PathEscape(pass) + "@" + hostpath + query
}
