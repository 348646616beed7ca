package query

import (
	"net/http"
	"strconv"
)

const DefaultLimit = 10
const MaxLimit = 100

// Params is a 1-based pagination request.
type Params struct {
	Page  int
	Limit int
}

// ParseParams reads page and limit from the query string. Out-of-range or
// missing values fall back to page 1 and the default limit; limit is
// capped at MaxLimit.
func ParseParams(r *http.Request) Params {
	p := Params{Page: 1, Limit: DefaultLimit}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Paginated is the list result shape shared by every resource. An empty
// page is not an error: Docs is always a non-nil array and the metadata
// stays consistent.
type Paginated[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func NewPaginated[T any](docs []T, totalDocs int64, p Params) Paginated[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := int((totalDocs + int64(p.Limit) - 1) / int64(p.Limit))
	return Paginated[T]{
		Docs:        docs,
		TotalDocs:   totalDocs,
		Page:        p.Page,
		Limit:       p.Limit,
		TotalPages:  totalPages,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1 && totalDocs > 0,
	}
}
