package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

// MaxLimit caps the page size a caller may request.
const MaxLimit = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:  1,
		Limit: 40,
	}
}

// FromRequest extracts ?page and ?limit from an HTTP request. Invalid or
// out-of-range values fall back to the defaults.
func FromRequest(r *http.Request) Params {
	return FromValues(r.URL.Query())
}

// FromValues extracts pagination parameters from decoded query values.
func FromValues(q url.Values) Params {
	p := DefaultParams()

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 && v <= MaxLimit {
			p.Limit = v
		}
	}

	return p
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Encode adds page and limit to q.
func (p Params) Encode(q url.Values) {
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
}

// Metadata is the paging block the storefront API returns next to list data.
type Metadata struct {
	CurrentPage   int `json:"currentPage"`
	NumberOfPages int `json:"numberOfPages"`
	Limit         int `json:"limit"`
	NextPage      int `json:"nextPage,omitempty"`
	PrevPage      int `json:"prevPage,omitempty"`
}

// NewMetadata computes the paging block for totalCount items.
func NewMetadata(totalCount int, params Params) Metadata {
	totalPages := totalCount / params.Limit
	if totalCount%params.Limit > 0 {
		totalPages++
	}

	m := Metadata{
		CurrentPage:   params.Page,
		NumberOfPages: totalPages,
		Limit:         params.Limit,
	}
	if params.Page < totalPages {
		m.NextPage = params.Page + 1
	}
	if params.Page > 1 {
		m.PrevPage = params.Page - 1
	}
	return m
}

// Result wraps a paginated response.
type Result[T any] struct {
	Results  int      `json:"results"`
	Metadata Metadata `json:"metadata"`
	Data     []T      `json:"data"`
}

// HasNext reports whether another page follows.
func (r Result[T]) HasNext() bool {
	return r.Metadata.CurrentPage < r.Metadata.NumberOfPages
}

// Paginate slices the page described by params out of items.
func Paginate[T any](items []T, params Params) Result[T] {
	start := params.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + params.Limit
	if end > len(items) {
		end = len(items)
	}

	page := make([]T, end-start)
	copy(page, items[start:end])
	return Result[T]{
		Results:  len(items),
		Metadata: NewMetadata(len(items), params),
		Data:     page,
	}
}
