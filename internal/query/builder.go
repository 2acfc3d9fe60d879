package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OrderClause represents a single ordering directive. Field is either a
// relational column or a document payload key; the store decides which.
type OrderClause struct {
	Field     string
	Direction string // "ASC" or "DESC".
	Nulls     string // "", "FIRST" or "LAST".
}

// String returns the SQL tail for this clause, e.g. "DESC NULLS LAST",
// prefixed with the field name.
func (o OrderClause) String() string {
	return o.Field + " " + o.Suffix()
}

// Suffix returns the direction and nulls placement, e.g. "DESC NULLS LAST".
func (o OrderClause) Suffix() string {
	s := o.Direction
	if s == "" {
		s = "ASC"
	}
	if o.Nulls != "" {
		s += " NULLS " + o.Nulls
	}
	return s
}

// ParseOrderClause parses "field [asc|desc] [nulls_first|nulls_last]".
// Tokens may be separated by spaces, '+' or ':' so that the value survives a
// query string unescaped. Direction defaults to ASC.
func ParseOrderClause(order string) (OrderClause, error) {
	tokens := strings.FieldsFunc(strings.TrimSpace(order), func(r rune) bool {
		return r == ' ' || r == '+' || r == ':' || r == '\t'
	})
	if len(tokens) == 0 {
		return OrderClause{}, nil
	}
	if len(tokens) > 3 {
		return OrderClause{}, fmt.Errorf("invalid order %q: expected 'field [asc|desc] [nulls_first|nulls_last]'", order)
	}
	if !identifierRegex.MatchString(tokens[0]) {
		return OrderClause{}, fmt.Errorf("invalid order field %q", tokens[0])
	}
	clause := OrderClause{Field: tokens[0], Direction: "ASC"}
	if len(tokens) > 1 {
		dir, err := NormalizeDirection(tokens[1])
		if err != nil {
			return OrderClause{}, err
		}
		clause.Direction = dir
	}
	if len(tokens) > 2 {
		nulls, err := NormalizeNulls(tokens[2])
		if err != nil {
			return OrderClause{}, err
		}
		clause.Nulls = nulls
	}
	return clause, nil
}

// NormalizeDirection maps asc/desc in any case to "ASC"/"DESC"; empty means ASC.
func NormalizeDirection(d string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "", "ASC":
		return "ASC", nil
	case "DESC":
		return "DESC", nil
	}
	return "", fmt.Errorf("invalid order direction %q: must be asc or desc", d)
}

// NormalizeNulls maps first/last (optionally prefixed "nulls_") to "FIRST"/"LAST".
func NormalizeNulls(n string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(n))
	v = strings.TrimPrefix(strings.TrimPrefix(v, "NULLS_"), "NULLS ")
	switch v {
	case "":
		return "", nil
	case "FIRST", "LAST":
		return v, nil
	}
	return "", fmt.Errorf("invalid nulls placement %q: must be first or last", n)
}

// ParseFieldSelection parses a comma-separated field list like "id,name,columnOrder"
// into a slice of field names. Whitespace around names is trimmed.
// Returns nil for an empty input string.
func ParseFieldSelection(fields string) ([]string, error) {
	fields = strings.TrimSpace(fields)
	if fields == "" {
		return nil, nil
	}

	parts := strings.Split(fields, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		col := strings.TrimSpace(part)
		if col == "" {
			continue
		}
		if !identifierRegex.MatchString(col) {
			return nil, fmt.Errorf("invalid field name %q", col)
		}
		result = append(result, col)
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// PostgresQuote returns a double-quoted identifier, the quoting shared by
// PostgreSQL and SQLite.
func PostgresQuote(name string) string {
	// Escape any embedded double quotes by doubling them.
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// DollarPlaceholder renders PostgreSQL positional parameters: $1, $2, ...
func DollarPlaceholder(i int) string { return "$" + strconv.Itoa(i) }

// NumberedPlaceholder renders SQLite numbered parameters: ?1, ?2, ...
// Numbered parameters may be referenced more than once in one statement.
func NumberedPlaceholder(i int) string { return "?" + strconv.Itoa(i) }

// Params accumulates bound arguments and hands out their placeholders.
type Params struct {
	placeholder func(int) string
	args        []interface{}
}

// NewParams returns an empty Params using the given placeholder style.
func NewParams(placeholder func(int) string) *Params {
	return &Params{placeholder: placeholder}
}

// Add binds v and returns its placeholder.
func (p *Params) Add(v interface{}) string {
	p.args = append(p.args, v)
	return p.placeholder(len(p.args))
}

// Args returns the bound arguments in placeholder order.
func (p *Params) Args() []interface{} { return p.args }

// Len returns the number of bound arguments.
func (p *Params) Len() int { return len(p.args) }

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 1000
	// MaxPage keeps (page-1)*limit within int.
	MaxPage = math.MaxInt / MaxLimit
)

// Paginate normalizes a 1-based page and page size into LIMIT/OFFSET.
// Non-positive values fall back to the defaults; limit is capped at MaxLimit
// and page at MaxPage.
func Paginate(page, limit int) (lim, offset int) {
	if page <= 0 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit, (page - 1) * limit
}
