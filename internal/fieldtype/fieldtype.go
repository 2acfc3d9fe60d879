// Package fieldtype holds the registry of column field types. Each type
// carries presentation metadata, default options and rules, an initial value
// and the function that validates a document value stored under a column of
// that type.
package fieldtype

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Rules is the validation rule set stored with a column.
type Rules struct {
	Required             bool     `json:"required,omitempty" yaml:"required"`
	MinLength            int      `json:"minLength,omitempty" yaml:"minLength"`
	MaxLength            int      `json:"maxLength,omitempty" yaml:"maxLength"`
	Min                  *float64 `json:"min,omitempty" yaml:"min"`
	Max                  *float64 `json:"max,omitempty" yaml:"max"`
	DisallowedCharacters string   `json:"disallowedCharacters,omitempty" yaml:"disallowedCharacters"`
	Blacklist            []string `json:"blacklist,omitempty" yaml:"blacklist"`
	Pattern              string   `json:"pattern,omitempty" yaml:"pattern"`

	// Items lists the values a select column accepts. It is taken from the
	// column's field options rather than its stored rules.
	Items []string `json:"-" yaml:"-"`
}

// Map returns the rules in the JSON object form stored with a column.
func (r Rules) Map() map[string]any {
	b, _ := json.Marshal(r)
	m := map[string]any{}
	_ = json.Unmarshal(b, &m)
	return m
}

// ParseRules decodes a column's stored validation object. Select items are
// read from the "items" entry of the column's field options.
func ParseRules(validation, options map[string]any) (Rules, error) {
	var r Rules
	if len(validation) > 0 {
		b, err := json.Marshal(validation)
		if err != nil {
			return r, fmt.Errorf("encode validation rules: %w", err)
		}
		if err := json.Unmarshal(b, &r); err != nil {
			return r, fmt.Errorf("decode validation rules: %w", err)
		}
	}
	if raw, ok := options["items"].([]any); ok {
		for _, item := range raw {
			r.Items = append(r.Items, fmt.Sprint(item))
		}
	}
	if raw, ok := options["items"].([]string); ok {
		r.Items = append(r.Items, raw...)
	}
	return r, nil
}

// Result is the outcome of validating one value. Error is empty when the
// value is valid; Value is the normalized value to store.
type Result struct {
	Value any
	Error string
}

// ValidateFunc validates a value against a rule set. columnName is used in
// the error message.
type ValidateFunc func(value any, rules Rules, columnName string) Result

// Descriptor describes one field type.
type Descriptor struct {
	Key string `json:"key"`
	// Base names the built-in type a custom type was derived from.
	Base           string         `json:"base,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Icon           string         `json:"icon,omitempty"`
	DefaultOptions map[string]any `json:"defaultOptions,omitempty"`
	DefaultRules   Rules          `json:"defaultRules"`
	InitialValue   any            `json:"initialValue"`

	// System types are provided by the engine for display purposes and can
	// be neither overridden nor created as user columns.
	System bool `json:"system"`
	// Private values are masked when documents are viewed.
	Private bool `json:"private"`

	Validate ValidateFunc `json:"-"`
}

// Registry is an immutable set of field type descriptors.
type Registry struct {
	types map[string]Descriptor
	keys  []string
}

// NewRegistry merges caller-supplied descriptors with the built-in ones.
// A custom descriptor may replace a built-in user type but never a system
// type, and must carry a validation function.
func NewRegistry(custom ...Descriptor) (*Registry, error) {
	types := make(map[string]Descriptor, len(builtins)+len(custom))
	for _, d := range builtins {
		types[d.Key] = d
	}
	for _, d := range custom {
		if d.Key == "" {
			return nil, fmt.Errorf("field type key cannot be empty")
		}
		if existing, ok := types[d.Key]; ok && existing.System {
			return nil, fmt.Errorf("field type %q is a system type and cannot be overridden", d.Key)
		}
		if d.Validate == nil {
			return nil, fmt.Errorf("field type %q has no validation function", d.Key)
		}
		if d.System {
			return nil, fmt.Errorf("field type %q: custom types cannot be system types", d.Key)
		}
		types[d.Key] = d
	}

	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Registry{types: types, keys: keys}, nil
}

// Lookup returns the descriptor registered under key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.types[key]
	return d, ok
}

// Keys returns every registered type key in sorted order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// List returns every descriptor in key order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.types[k])
	}
	return out
}

// UserCreatable returns the descriptors a user may create columns of.
func (r *Registry) UserCreatable() []Descriptor {
	var out []Descriptor
	for _, k := range r.keys {
		if d := r.types[k]; !d.System {
			out = append(out, d)
		}
	}
	return out
}

// Validate runs the validation function of the type registered under key.
// An unknown key is reported as a validation error.
func (r *Registry) Validate(key string, value any, rules Rules, columnName string) Result {
	d, ok := r.types[key]
	if !ok {
		return Result{Value: value, Error: fmt.Sprintf("%s has unknown field type %q", columnName, key)}
	}
	return d.Validate(value, rules, columnName)
}
