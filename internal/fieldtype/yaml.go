package fieldtype

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var keyRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// typesFile is the on-disk form of a set of custom field types.
//
//	field_types:
//	  - key: slug
//	    base: text
//	    title: Slug
//	    default_rules:
//	      required: true
//	      maxLength: 60
//	      disallowedCharacters: " /"
type typesFile struct {
	FieldTypes []CustomType `yaml:"field_types"`
}

// CustomType declares a field type that reuses the validation function of a
// built-in base type with its own metadata and defaults.
type CustomType struct {
	Key            string         `yaml:"key"`
	Base           string         `yaml:"base"`
	Title          string         `yaml:"title"`
	Description    string         `yaml:"description"`
	Icon           string         `yaml:"icon"`
	Private        bool           `yaml:"private"`
	DefaultOptions map[string]any `yaml:"default_options"`
	DefaultRules   *Rules         `yaml:"default_rules"`
	InitialValue   any            `yaml:"initial_value"`
}

// Descriptor resolves the custom type against its base.
func (c CustomType) Descriptor() (Descriptor, error) {
	if !keyRegex.MatchString(c.Key) {
		return Descriptor{}, fmt.Errorf("invalid field type key %q: must match %s", c.Key, keyRegex)
	}
	base, ok := Builtin(c.Base)
	if !ok {
		return Descriptor{}, fmt.Errorf("field type %q: unknown base type %q", c.Key, c.Base)
	}
	if base.System {
		return Descriptor{}, fmt.Errorf("field type %q: system type %q cannot be used as a base", c.Key, c.Base)
	}

	d := base
	d.Key = c.Key
	d.Base = base.Key
	if c.Title != "" {
		d.Title = c.Title
	}
	if c.Description != "" {
		d.Description = c.Description
	}
	if c.Icon != "" {
		d.Icon = c.Icon
	}
	if c.DefaultOptions != nil {
		d.DefaultOptions = c.DefaultOptions
	}
	if c.DefaultRules != nil {
		d.DefaultRules = *c.DefaultRules
	}
	if c.InitialValue != nil {
		d.InitialValue = c.InitialValue
	}
	d.Private = base.Private || c.Private
	return d, nil
}

// Load parses custom field types from YAML.
func Load(r io.Reader) ([]Descriptor, error) {
	var f typesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse field types: %w", err)
	}
	out := make([]Descriptor, 0, len(f.FieldTypes))
	seen := make(map[string]bool, len(f.FieldTypes))
	for _, c := range f.FieldTypes {
		if seen[c.Key] {
			return nil, fmt.Errorf("field type %q declared twice", c.Key)
		}
		seen[c.Key] = true
		d, err := c.Descriptor()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// LoadFile reads custom field types from a YAML file.
func LoadFile(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field types file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
