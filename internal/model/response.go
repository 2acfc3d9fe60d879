package model

// ErrorKind classifies the error of an envelope so that callers can map it
// to a transport status without parsing the message.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalid
	KindDuplicate
	KindNotFound
	KindInternal
)

// Envelope is the uniform result of every engine operation. Error is empty
// on success; Data holds whatever the operation produced, which may be empty
// even on success when nothing matched.
type Envelope[T any] struct {
	Data  T         `json:"data"`
	Error string    `json:"error"`
	Kind  ErrorKind `json:"-"`
}

// OK reports whether the envelope carries no error.
func (e Envelope[T]) OK() bool { return e.Error == "" }

// PagedEnvelope is the envelope of list operations.
type PagedEnvelope[T any] struct {
	Data       T         `json:"data"`
	Error      string    `json:"error"`
	Total      int64     `json:"total"`
	TotalPages int64     `json:"totalPages"`
	Kind       ErrorKind `json:"-"`
}

// OK reports whether the envelope carries no error.
func (e PagedEnvelope[T]) OK() bool { return e.Error == "" }

// TotalPages returns ceil(total/limit), or 0 when limit is not positive.
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}
