package model

import "encoding/json"

// Document is one record of a collection. Data is keyed by column fieldId.
type Document struct {
	ID           int64          `json:"id,omitempty"`
	CollectionID int64          `json:"collectionId,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Audit
}

// Flatten merges the payload and the system fields into one record:
// {id, <fieldId>: value, ..., createdAt, createdBy, updatedAt, updatedBy}.
// System fields win over payload keys of the same name.
func (d Document) Flatten() map[string]any {
	out := make(map[string]any, len(d.Data)+5)
	for k, v := range d.Data {
		out[k] = v
	}
	if d.ID != 0 {
		out["id"] = d.ID
	}
	if d.CreatedAt != nil {
		out["createdAt"] = *d.CreatedAt
	}
	if d.CreatedBy != "" {
		out["createdBy"] = d.CreatedBy
	}
	if d.UpdatedAt != nil {
		out["updatedAt"] = *d.UpdatedAt
	}
	if d.UpdatedBy != "" {
		out["updatedBy"] = d.UpdatedBy
	}
	return out
}

// DocumentsView is the combined read of a collection, its columns and one
// page of its documents.
type DocumentsView struct {
	Collection *Collection      `json:"collection"`
	Columns    []Column         `json:"columns"`
	Documents  []map[string]any `json:"documents"`
}

// Found reports whether the view resolved a collection.
func (v DocumentsView) Found() bool { return v.Collection != nil }

// MarshalJSON renders an unresolved view as an empty object.
func (v DocumentsView) MarshalJSON() ([]byte, error) {
	if v.Collection == nil {
		return []byte("{}"), nil
	}
	type view DocumentsView
	out := view(v)
	if out.Columns == nil {
		out.Columns = []Column{}
	}
	if out.Documents == nil {
		out.Documents = []map[string]any{}
	}
	return json.Marshal(out)
}
