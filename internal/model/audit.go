package model

import "time"

// Audit carries the bookkeeping fields stamped on every collection, column
// and document row. Timestamps are pointers so that a partial selection of
// returning columns omits them instead of emitting the zero time.
type Audit struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

// Stamp returns an Audit whose created and updated fields all carry the same
// instant and user.
func Stamp(now time.Time, userID string) Audit {
	return Audit{CreatedAt: &now, CreatedBy: userID, UpdatedAt: &now, UpdatedBy: userID}
}

// SortDirection is the direction of an ORDER BY term or a column's sort toggle.
type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// NullsPosition places NULL values before or after the sorted values.
type NullsPosition string

const (
	NullsDefault NullsPosition = ""
	NullsFirst   NullsPosition = "first"
	NullsLast    NullsPosition = "last"
)
