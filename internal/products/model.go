package products

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/productdesk/productdesk/internal/query"
)

// ListFamily is the cache key prefix shared by every product list page.
const ListFamily = "products"

const (
	// SortAsc orders ascending.
	SortAsc = "asc"
	// SortDesc orders descending.
	SortDesc = "desc"

	DefaultPage    = 1
	DefaultSize    = 10
	DefaultSortBy  = "name"
	DefaultSortDir = SortAsc
)

var (
	// SortableColumns lists the columns the remote API can order by.
	SortableColumns = []string{"id", "name", "price"}
	// PageSizes lists the page sizes offered by the list view.
	PageSizes = []int{5, 10, 25, 50}
)

// Product represents a product record owned by the remote API.
type Product struct {
	ID          *int64  `json:"id,omitempty"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description" validate:"required,max=1000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// HasID reports whether the product was already created server-side.
func (p Product) HasID() bool {
	return p.ID != nil
}

// IDValue returns the product id or zero when absent.
func (p Product) IDValue() int64 {
	if p.ID == nil {
		return 0
	}
	return *p.ID
}

// WithID returns a copy of the product carrying id.
func (p Product) WithID(id int64) Product {
	p.ID = &id
	return p
}

// WithoutID returns a copy of the product without an id.
func (p Product) WithoutID() Product {
	p.ID = nil
	return p
}

// QueryParams identifies one page view of the product list.
type QueryParams struct {
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	SortBy  string `json:"sortBy"`
	SortDir string `json:"sortDir"`
}

// DefaultQueryParams returns the parameters used when the list view is first opened.
func DefaultQueryParams() QueryParams {
	return QueryParams{Page: DefaultPage, Size: DefaultSize, SortBy: DefaultSortBy, SortDir: DefaultSortDir}
}

// Key renders the cache key for the parameter tuple.
func (p QueryParams) Key() query.Key {
	return query.NewKey(ListFamily,
		"page="+strconv.Itoa(p.Page),
		"size="+strconv.Itoa(p.Size),
		"sortBy="+p.SortBy,
		"sortDir="+p.SortDir,
	)
}

// Validate checks the parameters against the allowed values.
func (p QueryParams) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, p.Page)
	}
	if !IsPageSize(p.Size) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, p.Size)
	}
	if !IsSortable(p.SortBy) {
		return fmt.Errorf("%w: %q", ErrInvalidSortColumn, p.SortBy)
	}
	if p.SortDir != SortAsc && p.SortDir != SortDesc {
		return fmt.Errorf("%w: %q", ErrInvalidSortDirection, p.SortDir)
	}
	return nil
}

// IsSortable reports whether column is one of SortableColumns.
func IsSortable(column string) bool {
	return slices.Contains(SortableColumns, column)
}

// IsPageSize reports whether n is one of PageSizes.
func IsPageSize(n int) bool {
	return slices.Contains(PageSizes, n)
}

// PagedResponse is one page of products as returned by the remote API.
type PagedResponse struct {
	Content       []Product `json:"content"`
	TotalElements int64     `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Size          int       `json:"size"`
	Number        int       `json:"number"`
	First         bool      `json:"first"`
	Last          bool      `json:"last"`
	Empty         bool      `json:"empty"`
}
