package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query string. Missing or
// out-of-range values fall back to DefaultLimit and 0.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return PaginationParams{Limit: limit, Offset: max(offset, 0)}
}

// Page is the envelope of list responses. HasMore is set when a full page
// came back, so the caller may ask for the next offset.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func newPage[T any](items []T, p PaginationParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: len(items) == p.Limit,
	}
}
