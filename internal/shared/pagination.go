package shared

import "math"

// PageWindowWidth is the number of page links shown at once.
const PageWindowWidth = 5

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int64
	TotalPages int
	Pages      []int
	HasPrev    bool
	HasNext    bool
	Prev       int
	Next       int
	// Show is false when everything fits on one page.
	Show bool
}

// NewPagination computes pagination metadata. totalPages is taken from the
// server when known and derived from total otherwise.
func NewPagination(page, perPage int, total int64, totalPages int) Pagination {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	if totalPages <= 0 && total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	prev := max(1, page-1)
	if totalPages > 0 && page > totalPages {
		prev = totalPages
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		Pages:      PageWindow(page, totalPages, PageWindowWidth),
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		Prev:       prev,
		Next:       page + 1,
		Show:       totalPages > 1,
	}
}

// PageWindow returns up to width contiguous page numbers inside [1, total],
// centred on current where the bounds allow.
func PageWindow(current, total, width int) []int {
	if total < 1 || width < 1 {
		return nil
	}
	start := max(1, current-width/2)
	end := min(total, start+width-1)
	if end-start+1 < width {
		start = max(1, end-width+1)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
