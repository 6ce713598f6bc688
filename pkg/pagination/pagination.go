// Package pagination carries the page window used by the backend's list
// endpoints and decodes its paged response envelope.
package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is one page window. Zero values mean "first page, default size".
type Params struct {
	Limit  int
	Offset int
}

// Normalize clamps the window to the backend's accepted range.
func (p Params) Normalize() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Values encodes the window as query parameters.
func (p Params) Values() url.Values {
	p = p.Normalize()
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("offset", strconv.Itoa(p.Offset))
	return v
}

// Next returns the window for the following page.
func (p Params) Next() Params {
	p = p.Normalize()
	p.Offset += p.Limit
	return p
}

// Page is the backend's paged response envelope.
type Page[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HasMore reports whether another page exists after this one.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Data) < p.Total
}
