package model

// IndexSpec is the optional index hint stored with a column.
type IndexSpec struct {
	Direction SortDirection `json:"direction,omitempty"`
	Nulls     NullsPosition `json:"nulls,omitempty"`
}

// Column is a typed field definition belonging to one collection. FieldID is
// the key under which document payloads store the field's value.
type Column struct {
	ID           int64          `json:"id,omitempty"`
	CollectionID int64          `json:"collectionId,omitempty"`
	ColumnName   string         `json:"columnName,omitempty"`
	FieldID      string         `json:"fieldId,omitempty"`
	Type         string         `json:"type,omitempty"`
	FieldOptions map[string]any `json:"fieldOptions,omitempty"`
	Validation   map[string]any `json:"validation,omitempty"`
	HelpText     string         `json:"helpText,omitempty"`
	EnableDelete *bool          `json:"enableDelete,omitempty"`
	EnableSort   *bool          `json:"enableSort,omitempty"`
	EnableHide   *bool          `json:"enableHide,omitempty"`
	EnableFilter *bool          `json:"enableFilter,omitempty"`
	SortBy       SortDirection  `json:"sortBy,omitempty"`
	IsVisible    *bool          `json:"isVisible,omitempty"`
	Index        *IndexSpec     `json:"index,omitempty"`
	Audit
}

// ColumnInput is the payload for adding a column to a collection.
// ColumnOrder, when set, replaces the owning collection's column order;
// otherwise the new fieldId is appended to it.
type ColumnInput struct {
	CollectionID int64          `json:"collectionId" validate:"required,gt=0"`
	ColumnName   string         `json:"columnName" validate:"required,min=1,max=100"`
	FieldID      string         `json:"fieldId" validate:"required,min=1,max=15,fieldid"`
	Type         string         `json:"type" validate:"required"`
	FieldOptions map[string]any `json:"fieldOptions"`
	Validation   map[string]any `json:"validation"`
	HelpText     string         `json:"helpText" validate:"max=500"`
	EnableDelete *bool          `json:"enableDelete"`
	EnableSort   *bool          `json:"enableSort"`
	EnableHide   *bool          `json:"enableHide"`
	EnableFilter *bool          `json:"enableFilter"`
	SortBy       SortDirection  `json:"sortBy" validate:"omitempty,oneof=asc desc"`
	IsVisible    *bool          `json:"isVisible"`
	Index        *IndexSpec     `json:"index"`
	ColumnOrder  []string       `json:"columnOrder,omitempty"`
}

// ColumnPatch is a partial update of a column. The fieldId is immutable and
// therefore absent.
type ColumnPatch struct {
	ColumnName   *string        `json:"columnName,omitempty" validate:"omitempty,min=1,max=100"`
	Type         *string        `json:"type,omitempty" validate:"omitempty,min=1"`
	FieldOptions map[string]any `json:"fieldOptions,omitempty"`
	Validation   map[string]any `json:"validation,omitempty"`
	HelpText     *string        `json:"helpText,omitempty" validate:"omitempty,max=500"`
	EnableDelete *bool          `json:"enableDelete,omitempty"`
	EnableSort   *bool          `json:"enableSort,omitempty"`
	EnableHide   *bool          `json:"enableHide,omitempty"`
	EnableFilter *bool          `json:"enableFilter,omitempty"`
	SortBy       *SortDirection `json:"sortBy,omitempty" validate:"omitempty,oneof=asc desc"`
	IsVisible    *bool          `json:"isVisible,omitempty"`
	Index        *IndexSpec     `json:"index,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ColumnPatch) Empty() bool {
	return p.ColumnName == nil && p.Type == nil && p.FieldOptions == nil && p.Validation == nil &&
		p.HelpText == nil && p.EnableDelete == nil && p.EnableSort == nil && p.EnableHide == nil &&
		p.EnableFilter == nil && p.SortBy == nil && p.IsVisible == nil && p.Index == nil
}

// NextSort returns the sort direction following d in the toggle cycle
// unset -> asc -> desc -> asc.
func NextSort(d SortDirection) SortDirection {
	if d == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// Bool returns a pointer to b, for optional flags.
func Bool(b bool) *bool { return &b }
