package pagination

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/doc-gateway/pkg/query"
)

// PageRequest asks for one numbered page, optionally searched and sorted.
type PageRequest struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   *string           `json:"search,omitempty"`
	Sort     []query.SortField `json:"sort,omitempty"`
}

// Normalize clamps Page to at least 1 and PageSize into [1, cfg.MaxPageSize],
// substituting the default for non-positive sizes.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	r.PageSize = cfg.clamp(r.PageSize)
}

// Offset is the number of rows preceding the page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size, search and sort from values.
// sort is comma separated; a leading "-" sorts descending.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	req := PageRequest{
		Page:     atoi(values, "page"),
		PageSize: atoi(values, "page_size"),
		Sort:     query.ParseSortFields(values.Get("sort")),
	}
	if s := values.Get("search"); s != "" {
		req.Search = &s
	}
	req.Normalize(cfg)
	return req
}

// Window is an offset/limit slice over an unnumbered listing such as a
// bucket scan.
type Window struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// WindowFromQuery reads offset and limit from values. The limit is clamped
// like a page size.
func WindowFromQuery(values url.Values, cfg Config) Window {
	return Window{
		Offset: max(atoi(values, "offset"), 0),
		Limit:  cfg.clamp(atoi(values, "limit")),
	}
}

// PageResult is one page of T plus the totals needed to walk the rest.
type PageResult[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// NewPageResult derives TotalPages (at least 1) and HasMore. Data is never nil.
func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	pages := 1
	if pageSize > 0 && total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	if data == nil {
		data = []T{}
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		HasMore:    page < pages,
	}
}

func atoi(values url.Values, key string) int {
	n, _ := strconv.Atoi(values.Get(key))
	return n
}
