package openapi

import (
	"strings"

	"github.com/faucetdb/basin/internal/fieldtype"
)

// TypeMapping represents an OpenAPI type and optional format for a field type.
type TypeMapping struct {
	Type   string
	Format string
}

// fieldTypeToOpenAPI maps built-in field type keys to OpenAPI 3.1 types.
var fieldTypeToOpenAPI = map[string]TypeMapping{
	fieldtype.Text:      {"string", ""},
	fieldtype.Textarea:  {"string", ""},
	fieldtype.Number:    {"number", "double"},
	fieldtype.Boolean:   {"boolean", ""},
	fieldtype.Email:     {"string", "email"},
	fieldtype.URL:       {"string", "uri"},
	fieldtype.Password:  {"string", "password"},
	fieldtype.Secret:    {"string", "password"},
	fieldtype.Select:    {"string", ""},
	fieldtype.File:      {"string", ""},
	fieldtype.Image:     {"string", ""},
	fieldtype.Info:      {"string", ""},
	fieldtype.Timestamp: {"string", "date-time"},
}

// MapFieldType converts a field type descriptor to an OpenAPI type mapping.
// Custom types map like their base type. Falls back to {"string", ""} for
// unknown keys.
func MapFieldType(d fieldtype.Descriptor) TypeMapping {
	key := strings.ToLower(strings.TrimSpace(d.Key))
	if m, ok := fieldTypeToOpenAPI[key]; ok {
		return m
	}
	if m, ok := fieldTypeToOpenAPI[d.Base]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}
