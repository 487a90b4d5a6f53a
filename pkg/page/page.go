// Package page provides the envelope returned by list endpoints.
package page

import "github.com/chybatronik/goRestKit/pkg/query"

// Page is one page of results. Data is never null on the wire.
type Page[T any] struct {
	Data     []T    `json:"data"`
	Offset   int    `json:"offset"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size"` // len(Data), may be smaller than requested
	Total    *int64 `json:"total,omitempty"`
	HasMore  bool   `json:"has_more"`
	Message  string `json:"message,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// Empty returns a page with no results and a zero total
func Empty[T any]() *Page[T] {
	var zero int64
	return &Page[T]{Data: []T{}, Total: &zero}
}

// FromSlice wraps a complete result set: page size and total are len(data).
func FromSlice[T any](data []T) *Page[T] {
	if data == nil {
		data = []T{}
	}
	total := int64(len(data))
	return &Page[T]{Data: data, PageSize: len(data), Total: &total}
}

// WithData builds a page from a slice, an optional total and the offset it starts at
func WithData[T any](data []T, total *int64, offset int) *Page[T] {
	if data == nil {
		data = []T{}
	}
	p := &Page[T]{
		Data:     data,
		Offset:   offset,
		PageSize: len(data),
		Total:    total,
	}
	if total != nil {
		p.HasMore = int64(offset+len(data)) < *total
	}
	return p
}

// New builds a page for the requested pagination. Without a total, HasMore
// is true when a full page came back.
func New[T any](data []T, p query.Pagination, total *int64) *Page[T] {
	pg := WithData(data, total, p.Offset())
	pg.Page = p.Page
	if total == nil {
		pg.HasMore = p.Size > 0 && len(pg.Data) >= p.Size
	}
	return pg
}

// WithMessage sets a hint shown to the user alongside the results
func (p *Page[T]) WithMessage(msg string) *Page[T] {
	p.Message = msg
	return p
}

// WithWarning sets a warning shown to the user alongside the results
func (p *Page[T]) WithWarning(msg string) *Page[T] {
	p.Warning = msg
	return p
}
