package fieldtype

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestRegistry(t *testing.T, custom ...Descriptor) *Registry {
	t.Helper()
	r, err := NewRegistry(custom...)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return r
}

func floatPtr(f float64) *float64 { return &f }

func TestRegistryBuiltins(t *testing.T) {
	r := newTestRegistry(t)

	for _, key := range []string{Text, Textarea, Number, Boolean, Email, URL, Password, Secret, Select, File, Image, Info, Timestamp} {
		if _, ok := r.Lookup(key); !ok {
			t.Errorf("built-in type %q not registered", key)
		}
	}
	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}

	for _, d := range r.UserCreatable() {
		if d.System {
			t.Errorf("UserCreatable returned system type %q", d.Key)
		}
	}
	if d, _ := r.Lookup(Password); !d.Private {
		t.Error("password should be private")
	}
}

func TestRegistryCustomTypes(t *testing.T) {
	custom := Descriptor{Key: "slug", Title: "Slug", Validate: validateText}
	r := newTestRegistry(t, custom)
	if _, ok := r.Lookup("slug"); !ok {
		t.Fatal("custom type not registered")
	}
	keys := r.Keys()
	if !strings.Contains(strings.Join(keys, ","), "slug") {
		t.Errorf("Keys() = %v, missing slug", keys)
	}

	tests := []struct {
		name string
		desc Descriptor
	}{
		{"override system type", Descriptor{Key: Info, Validate: passThrough}},
		{"missing validate", Descriptor{Key: "color"}},
		{"empty key", Descriptor{Validate: passThrough}},
		{"custom system flag", Descriptor{Key: "color", System: true, Validate: passThrough}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.desc); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name      string
		key       string
		value     any
		rules     Rules
		wantErr   string
		wantValue any
	}{
		{"text ok", Text, "hello", Rules{MaxLength: 10}, "", "hello"},
		{"text required nil", Text, nil, Rules{Required: true}, "Title is required", nil},
		{"text required empty", Text, "", Rules{Required: true}, "Title is required", ""},
		{"text optional empty", Text, nil, Rules{}, "", ""},
		{"text wrong type", Text, 42.0, Rules{}, "Title must be text", 42.0},
		{"text length both bounds", Text, "", Rules{Required: false, MinLength: 1, MaxLength: 100}, "", ""},
		{"text too long", Text, strings.Repeat("a", 101), Rules{MinLength: 1, MaxLength: 100},
			"Title must have a minimum length of 1 and a maximum of 100", strings.Repeat("a", 101)},
		{"text too short", Text, "ab", Rules{MinLength: 3}, "Title must have a minimum length of 3", "ab"},
		{"text runes counted", Text, "héllo", Rules{MaxLength: 5}, "", "héllo"},
		{"disallowed", Text, "a/b", Rules{DisallowedCharacters: " /"}, `Title must not contain the character '/'`, "a/b"},
		{"pattern", Text, "abc1", Rules{Pattern: `^[a-z]+$`}, "Title does not match the required pattern", "abc1"},
		{"blacklist", Text, "Admin", Rules{Blacklist: []string{"admin"}}, "Title contains a value that is not allowed", "Admin"},
		{"required before length", Text, "", Rules{Required: true, MinLength: 3}, "Title is required", ""},
		{"email ok", Email, " a@b.io ", Rules{}, "", "a@b.io"},
		{"email bad", Email, "nope", Rules{}, "Title must be a valid email address", "nope"},
		{"url ok", URL, "https://example.com/x", Rules{}, "", "https://example.com/x"},
		{"url bad", URL, "not a url", Rules{}, "Title must be a valid URL", "not a url"},
		{"number ok", Number, 3.5, Rules{}, "", 3.5},
		{"number from string", Number, "7", Rules{}, "", 7.0},
		{"number bad", Number, "x", Rules{}, "Title must be a number", "x"},
		{"number min", Number, 1.0, Rules{Min: floatPtr(2)}, "Title must be at least 2", 1.0},
		{"number max", Number, 10.0, Rules{Max: floatPtr(9.5)}, "Title must be at most 9.5", 10.0},
		{"number optional nil", Number, nil, Rules{}, "", nil},
		{"boolean ok", Boolean, true, Rules{}, "", true},
		{"boolean string", Boolean, "false", Rules{}, "", false},
		{"boolean bad", Boolean, 3.0, Rules{}, "Title must be true or false", 3.0},
		{"boolean default", Boolean, nil, Rules{}, "", false},
		{"select ok", Select, "b", Rules{Items: []string{"a", "b"}}, "", "b"},
		{"select bad", Select, "c", Rules{Items: []string{"a", "b"}}, "Title must be one of: a, b", "c"},
		{"image ok", Image, "/uploads/cat.PNG?v=2", Rules{}, "", "/uploads/cat.PNG?v=2"},
		{"image bad", Image, "/uploads/cat.pdf", Rules{}, "Title must reference an image file", "/uploads/cat.pdf"},
		{"password min", Password, "short", Rules{MinLength: 8, MaxLength: 128},
			"Title must have a minimum length of 8 and a maximum of 128", "short"},
		{"timestamp ok", Timestamp, "2025-01-15T12:00:00+02:00", Rules{}, "", "2025-01-15T10:00:00Z"},
		{"timestamp bad", Timestamp, "yesterday", Rules{}, "Title must be an RFC 3339 timestamp", "yesterday"},
		{"info passes", Info, "anything", Rules{}, "", "anything"},
		{"unknown type", "nope", "x", Rules{}, `Title has unknown field type "nope"`, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Validate(tt.key, tt.value, tt.rules, "Title")
			if got.Error != tt.wantErr {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantErr)
			}
			if diff := cmp.Diff(tt.wantValue, got.Value); diff != "" {
				t.Errorf("Value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(
		map[string]any{"required": true, "maxLength": 20.0, "min": 0.0, "blacklist": []any{"x"}},
		map[string]any{"items": []any{"draft", "live"}},
	)
	if err != nil {
		t.Fatalf("ParseRules error: %v", err)
	}
	want := Rules{Required: true, MaxLength: 20, Min: floatPtr(0), Blacklist: []string{"x"}, Items: []string{"draft", "live"}}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseRules(map[string]any{"maxLength": "ten"}, nil); err == nil {
		t.Error("expected error for non-numeric maxLength")
	}
}

func TestRulesMap(t *testing.T) {
	m := Rules{Required: true, MaxLength: 10, Min: floatPtr(0)}.Map()
	want := map[string]any{"required": true, "maxLength": 10.0, "min": 0.0}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
}
