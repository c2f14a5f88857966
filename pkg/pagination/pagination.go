// Package pagination reads limit/offset query parameters and windows
// newest-first result sets.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context. Missing
// or invalid values fall back to defaults.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Fetch is how many rows to read from a store, starting at Offset, to fill
// this page and detect whether another page follows.
func (p Params) Fetch() int {
	return p.Limit + 1
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Response wraps a paginated API response.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Window builds the page described by p from rows, which must have been read
// starting at p.Offset with p.Fetch() as the limit.
func Window[T any](rows []T, p Params) *Response[T] {
	resp := &Response[T]{Data: []T{}, Limit: p.Limit, Offset: p.Offset}
	if len(rows) > p.Limit {
		resp.HasMore = true
		rows = rows[:p.Limit]
	}
	if len(rows) > 0 {
		resp.Data = rows
	}
	return resp
}
