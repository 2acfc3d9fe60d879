package query

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseOrderClause(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    OrderClause
		wantErr bool
	}{
		{"empty", "", OrderClause{}, false},
		{"field only", "title", OrderClause{Field: "title", Direction: "ASC"}, false},
		{"desc", "title desc", OrderClause{Field: "title", Direction: "DESC"}, false},
		{"plus separated", "createdAt+DESC+nulls_last", OrderClause{Field: "createdAt", Direction: "DESC", Nulls: "LAST"}, false},
		{"colon separated", "title:asc:first", OrderClause{Field: "title", Direction: "ASC", Nulls: "FIRST"}, false},
		{"bad direction", "title sideways", OrderClause{}, true},
		{"bad nulls", "title asc middle", OrderClause{}, true},
		{"bad field", "1title", OrderClause{}, true},
		{"injection", "title;drop", OrderClause{}, true},
		{"too many tokens", "a asc first extra", OrderClause{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderClause(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("clause mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderClauseString(t *testing.T) {
	tests := []struct {
		clause OrderClause
		want   string
	}{
		{OrderClause{Field: "id"}, "id ASC"},
		{OrderClause{Field: "title", Direction: "DESC"}, "title DESC"},
		{OrderClause{Field: "title", Direction: "ASC", Nulls: "LAST"}, "title ASC NULLS LAST"},
	}
	for _, tt := range tests {
		if got := tt.clause.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseFieldSelection(t *testing.T) {
	got, err := ParseFieldSelection(" id, name ,columnOrder,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"id", "name", "columnOrder"}, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	if got, err := ParseFieldSelection("  "); err != nil || got != nil {
		t.Errorf("empty selection = %v, %v", got, err)
	}
	if _, err := ParseFieldSelection("id,na me"); err == nil {
		t.Error("expected error for invalid field name")
	}
}

func TestParams(t *testing.T) {
	p := NewParams(DollarPlaceholder)
	if ph := p.Add(1); ph != "$1" {
		t.Errorf("first placeholder = %q, want $1", ph)
	}
	if ph := p.Add("x"); ph != "$2" {
		t.Errorf("second placeholder = %q, want $2", ph)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	if diff := cmp.Diff([]interface{}{1, "x"}, p.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	s := NewParams(NumberedPlaceholder)
	s.Add(true)
	if ph := s.Add(false); ph != "?2" {
		t.Errorf("sqlite placeholder = %q, want ?2", ph)
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantLimit, wantOffs int
	}{
		{0, 0, 10, 0},
		{1, 10, 10, 0},
		{2, 10, 10, 10},
		{3, 5, 5, 10},
		{-1, -5, 10, 0},
		{1, 5000, MaxLimit, 0},
		{math.MaxInt, MaxLimit, MaxLimit, (MaxPage - 1) * MaxLimit},
		{math.MaxInt, 5000, MaxLimit, (MaxPage - 1) * MaxLimit},
	}
	for _, tt := range tests {
		lim, off := Paginate(tt.page, tt.limit)
		if lim != tt.wantLimit || off != tt.wantOffs {
			t.Errorf("Paginate(%d, %d) = (%d, %d), want (%d, %d)", tt.page, tt.limit, lim, off, tt.wantLimit, tt.wantOffs)
		}
	}
}

func TestPostgresQuote(t *testing.T) {
	if got := PostgresQuote("acme"); got != `"acme"` {
		t.Errorf("PostgresQuote = %s", got)
	}
	if got := PostgresQuote(`a"b`); got != `"a""b"` {
		t.Errorf("PostgresQuote escaping = %s", got)
	}
}
