package model

// CollectionType distinguishes collections holding one document from those
// holding many.
type CollectionType string

const (
	CollectionSingle   CollectionType = "single"
	CollectionMultiple CollectionType = "multiple"
)

// Reserved virtual entries a column order may contain besides fieldIds.
const (
	OrderSelection = "_selection"
	OrderActions   = "_actions"
)

// Collection is a named, user-defined schema that owns columns and documents.
type Collection struct {
	ID          int64          `json:"id,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	Name        string         `json:"name,omitempty"`
	Type        CollectionType `json:"type,omitempty"`
	Roles       []string       `json:"roles,omitempty"`
	ColumnOrder []string       `json:"columnOrder,omitempty"`
	Published   *bool          `json:"published,omitempty"`
	Audit
}

// CollectionInput is the payload for creating a collection. Names made of
// digits only are rejected: path segments and tool arguments read them as ids.
type CollectionInput struct {
	Name        string         `json:"name" validate:"required,min=1,max=100,collname"`
	Type        CollectionType `json:"type" validate:"required,oneof=single multiple"`
	Roles       []string       `json:"roles"`
	ColumnOrder []string       `json:"columnOrder"`
	Published   bool           `json:"published"`
}

// CollectionPatch is a partial update of a collection. Nil fields are left
// untouched; a non-nil empty slice clears the stored list.
type CollectionPatch struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,min=1,max=100,collname"`
	Type        *CollectionType `json:"type,omitempty" validate:"omitempty,oneof=single multiple"`
	Roles       []string        `json:"roles,omitempty"`
	ColumnOrder []string        `json:"columnOrder,omitempty"`
	Published   *bool           `json:"published,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p CollectionPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Roles == nil && p.ColumnOrder == nil && p.Published == nil
}
