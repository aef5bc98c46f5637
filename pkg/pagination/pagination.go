package pagination

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Sort names a field and direction. A leading "-" in the query form
// ("-modified_at") requests descending order.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSort parses "field" or "-field". An empty string yields the zero Sort.
func ParseSort(s string) Sort {
	s = strings.TrimSpace(s)
	if desc, ok := strings.CutPrefix(s, "-"); ok {
		return Sort{Field: desc, Descending: true}
	}
	return Sort{Field: s}
}

// PageRequest is a client request for one page of a listing.
type PageRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search,omitempty"`
	Sort     Sort   `json:"sort"`
}

// Normalize clamps the request to valid values for cfg.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

// Offset returns the number of items skipped before the requested page.
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size, search and sort from values.
func PageRequestFromQuery(values url.Values, cfg Config) PageRequest {
	page, _ := strconv.Atoi(values.Get("page"))
	size, _ := strconv.Atoi(values.Get("page_size"))

	req := PageRequest{
		Page:     page,
		PageSize: size,
		Search:   strings.TrimSpace(values.Get("search")),
		Sort:     ParseSort(values.Get("sort")),
	}
	req.Normalize(cfg)
	return req
}

// PageResult holds one page of items with paging metadata.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPageResult builds a PageResult, computing the page count.
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
	}
}

// Options describes how Slice filters and orders items.
// Match reports whether an item satisfies the search term; Orders maps
// sortable field names to comparison functions. Unknown sort fields keep
// the input order.
type Options[T any] struct {
	Match  func(item T, search string) bool
	Orders map[string]func(a, b T) int
}

// Slice filters, orders and pages items according to req without
// modifying the input slice.
func Slice[T any](items []T, req PageRequest, opts Options[T]) PageResult[T] {
	filtered := items
	if req.Search != "" && opts.Match != nil {
		filtered = make([]T, 0, len(items))
		for _, item := range items {
			if opts.Match(item, req.Search) {
				filtered = append(filtered, item)
			}
		}
	} else {
		filtered = slices.Clone(items)
	}

	if cmp, ok := opts.Orders[req.Sort.Field]; ok {
		slices.SortStableFunc(filtered, func(a, b T) int {
			if req.Sort.Descending {
				return cmp(b, a)
			}
			return cmp(a, b)
		})
	}

	total := len(filtered)
	start := min(req.Offset(), total)
	end := min(start+req.PageSize, total)

	return NewPageResult(filtered[start:end], total, req.Page, req.PageSize)
}
