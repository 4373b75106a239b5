package products

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrMissingID indicates an operation that needs a server-assigned id got none.
	ErrMissingID = errors.New("product id is required")
	// ErrInvalidPage indicates a page index below 1.
	ErrInvalidPage = errors.New("invalid page")
	// ErrInvalidPageSize indicates a page size outside PageSizes.
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidSortColumn indicates a column outside SortableColumns.
	ErrInvalidSortColumn = errors.New("invalid sort column")
	// ErrInvalidSortDirection indicates a direction other than asc/desc.
	ErrInvalidSortDirection = errors.New("invalid sort direction")
)

// NetworkError reports that the remote API produced no response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response from the remote API.
type HTTPError struct {
	Op      string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: remote api returned status %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// NotFound reports whether the remote API answered 404.
func (e *HTTPError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// ValidationError reports form input rejected before any request is sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Message returns a short human readable description of err for notifications.
func Message(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return fmt.Sprintf("server responded with status %d", httpErr.Status)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "the products service is unreachable"
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "please correct the highlighted fields"
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
