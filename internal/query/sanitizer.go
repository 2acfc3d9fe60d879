// Package query provides identifier validation, order-by parsing, pagination
// and placeholder bookkeeping shared by the SQL dialects and the content
// store. Values always travel as bound parameters; only validated
// identifiers are ever spliced into statement text.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex validates SQL identifiers (column names, table names).
// Must start with a letter or underscore, followed by alphanumeric or underscore.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqlReservedWords contains SQL keywords that cannot be used as identifiers.
var sqlReservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "INTO": true,
	"FROM": true, "WHERE": true, "TABLE": true, "DATABASE": true,
	"GRANT": true, "REVOKE": true, "INDEX": true, "VIEW": true,
	"PROCEDURE": true, "FUNCTION": true, "TRIGGER": true, "SCHEMA": true,
	"PUBLIC": true, "MAIN": true, "TEMP": true,
}

// Length limits.
const (
	MaxIdentifierLen = 128
	MaxNamespaceLen  = 63
	MaxFieldIDLen    = 15
)

// ValidateIdentifier ensures a SQL identifier (column name, table name) is safe.
// It rejects empty strings, strings over 128 characters, strings that don't
// match the identifier pattern, and SQL reserved words.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > MaxIdentifierLen {
		return fmt.Errorf("identifier too long (max %d chars): %q", MaxIdentifierLen, name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if sqlReservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", name)
	}
	return nil
}

// ValidateIdentifiers validates multiple identifiers, returning the first error found.
func ValidateIdentifiers(names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNamespace checks a tenant namespace key. Namespaces become schema
// or attached database names, so they follow the identifier rules with the
// shorter Postgres limit.
func ValidateNamespace(ns string) error {
	if len(ns) > MaxNamespaceLen {
		return fmt.Errorf("namespace too long (max %d chars): %q", MaxNamespaceLen, ns)
	}
	if strings.HasPrefix(strings.ToLower(ns), "pg_") || strings.HasPrefix(strings.ToLower(ns), "sqlite_") {
		return fmt.Errorf("namespace %q uses a reserved prefix", ns)
	}
	if err := ValidateIdentifier(ns); err != nil {
		return fmt.Errorf("invalid namespace: %w", err)
	}
	return nil
}

// IsFieldID reports whether s is usable as a column fieldId. FieldIds are
// only ever bound as JSON keys, so reserved words are allowed.
func IsFieldID(s string) bool {
	return len(s) > 0 && len(s) <= MaxFieldIDLen && identifierRegex.MatchString(s)
}

// ValidateFieldID is the error-returning form of IsFieldID.
func ValidateFieldID(s string) error {
	if !IsFieldID(s) {
		return fmt.Errorf("invalid fieldId %q: must match [a-zA-Z_][a-zA-Z0-9_]* and be at most %d chars", s, MaxFieldIDLen)
	}
	return nil
}
