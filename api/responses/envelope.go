package responses

// Envelope wraps every successful body.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody is the client-facing part of a pkg/errors.Error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Page is one slice of a cursor-paged list. NextCursor is empty on the last
// page.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NewPage never encodes a nil slice, so empty lists render as [].
func NewPage[T any](items []T, next string) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, NextCursor: next}
}
