package products

import (
	"strconv"

	"github.com/productdesk/productdesk/internal/query"
	"github.com/productdesk/productdesk/internal/shared"
)

// Texts shown by the list view.
const (
	LoadErrorText = "Failed to load products. Please try again later."
	EmptyText     = "No products found. Create your first product to get started."
)

var listColumns = []struct {
	key, label string
	sortable   bool
}{
	{"id", "ID", true},
	{"name", "Name", true},
	{"description", "Description", false},
	{"price", "Price", true},
}

// ColumnView is one table header.
type ColumnView struct {
	Key      string
	Label    string
	Sortable bool
	Active   bool
}

// PageSizeOption is one entry of the page size selector.
type PageSizeOption struct {
	Value    int
	Selected bool
}

// FormView carries the values and messages of the product form.
type FormView struct {
	Name        string
	Description string
	Price       string
	Errors      map[string]string
}

// DialogView describes the open dialog, if any.
type DialogView struct {
	Kind    DialogKind
	Mode    FormMode
	Title   string
	Submit  string
	Target  *Product
	Form    FormView
	Pending bool
	Error   string
}

// IsForm reports whether the create/edit form is shown.
func (d DialogView) IsForm() bool {
	return d.Kind == DialogForm
}

// IsDelete reports whether the delete confirmation is shown.
func (d DialogView) IsDelete() bool {
	return d.Kind == DialogDelete
}

// ListPage is the data rendered by pages/products.html.
type ListPage struct {
	Params        QueryParams
	Columns       []ColumnView
	Products      []Product
	Status        query.Status
	Loading       bool
	Failed        bool
	Empty         bool
	Stale         bool
	TotalElements int64
	HasData       bool
	Pagination    shared.Pagination
	PageSizes     []PageSizeOption
	Dialog        DialogView
	LoadError     string
	EmptyText     string
}

// buildListPage turns the controller state and list result into view data.
func buildListPage(state ListState, res query.Result[PagedResponse]) ListPage {
	page := ListPage{
		Params:    state.Params,
		Status:    res.Status,
		Stale:     res.Stale || res.Fetching,
		Dialog:    buildDialog(state),
		LoadError: LoadErrorText,
		EmptyText: EmptyText,
	}
	for _, col := range listColumns {
		page.Columns = append(page.Columns, ColumnView{
			Key:      col.key,
			Label:    col.label,
			Sortable: col.sortable,
			Active:   col.sortable && col.key == state.Params.SortBy,
		})
	}
	for _, size := range PageSizes {
		page.PageSizes = append(page.PageSizes, PageSizeOption{Value: size, Selected: size == state.Params.Size})
	}

	switch res.Status {
	case query.StatusError:
		page.Failed = true
	case query.StatusLoading:
		page.Loading = !res.HasData
	}
	if res.HasData && res.Status != query.StatusError {
		data := res.Data
		page.HasData = true
		page.Products = data.Content
		page.Empty = len(data.Content) == 0
		page.TotalElements = data.TotalElements
		page.Pagination = shared.NewPagination(state.Params.Page, state.Params.Size, data.TotalElements, data.TotalPages)
	}
	return page
}

func buildDialog(state ListState) DialogView {
	d := DialogView{Kind: state.Dialog, Mode: state.Mode, Target: state.Selected}
	switch state.Dialog {
	case DialogForm:
		d.Title = "Create new product"
		d.Submit = "Create"
		if state.Mode == FormEdit {
			d.Title = "Edit product"
			d.Submit = "Update"
		}
		d.Pending = state.FormMutation.Pending()
		if state.FormMutation.Failed() {
			d.Error = state.FormMutation.Error
		}
		source := state.Draft
		if source == nil {
			source = state.Selected
		}
		d.Form = FormView{Price: "0", Errors: state.FieldErrors}
		if source != nil {
			d.Form.Name = source.Name
			d.Form.Description = source.Description
			d.Form.Price = strconv.FormatFloat(source.Price, 'f', -1, 64)
		}
	case DialogDelete:
		d.Title = "Confirm Deletion"
		d.Pending = state.DeleteMutation.Pending()
		if state.DeleteMutation.Failed() {
			d.Error = state.DeleteMutation.Error
		}
	}
	return d
}
