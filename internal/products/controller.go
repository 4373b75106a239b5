package products

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/productdesk/productdesk/internal/query"
)

// DialogKind names the dialog currently open on the list view.
type DialogKind string

const (
	DialogNone   DialogKind = ""
	DialogForm   DialogKind = "form"
	DialogDelete DialogKind = "delete"
)

// FormMode tells whether the form dialog creates or edits a product.
type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// ErrNoOpenForm is returned when a form is submitted while no form dialog is open.
var ErrNoOpenForm = errors.New("no product form is open")

// ProductStore is the subset of Store used by the list controller.
type ProductStore interface {
	List(ctx context.Context, params QueryParams) query.Result[PagedResponse]
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// Names under which a MutationGuard serialises the two writes.
const (
	FormMutationName   = "form"
	DeleteMutationName = "delete"
)

// MutationGuard keeps at most one write per name in flight for a browser
// session across requests. Acquire fails with query.ErrMutationPending while
// another request holds name.
type MutationGuard interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// ListState is the persisted form of a ListController.
type ListState struct {
	Params         QueryParams         `json:"params"`
	Selected       *Product            `json:"selected,omitempty"`
	Dialog         DialogKind          `json:"dialog,omitempty"`
	Mode           FormMode            `json:"mode,omitempty"`
	Draft          *Product            `json:"draft,omitempty"`
	FieldErrors    map[string]string   `json:"fieldErrors,omitempty"`
	FormMutation   query.MutationState `json:"formMutation"`
	DeleteMutation query.MutationState `json:"deleteMutation"`
}

// DefaultListState returns the state of a freshly opened list view.
func DefaultListState() ListState {
	return ListState{
		Params:         DefaultQueryParams(),
		FormMutation:   query.MutationState{Status: query.MutationIdle},
		DeleteMutation: query.MutationState{Status: query.MutationIdle},
	}
}

// ListController owns the query parameters and the selection/dialog state of
// the product list and turns user intents into parameter changes or writes.
type ListController struct {
	store ProductStore

	mu          sync.Mutex
	params      QueryParams
	selected    *Product
	dialog      DialogKind
	mode        FormMode
	draft       *Product
	fieldErrors map[string]string
	result      query.Result[PagedResponse]
	loaded      bool

	save   *query.Mutation[Product, Product]
	remove *query.Mutation[int64, struct{}]
	guard  MutationGuard
}

// NewListController restores a controller from state. Invalid parameters fall
// back to the defaults.
func NewListController(store ProductStore, state ListState) *ListController {
	c := &ListController{
		store:       store,
		params:      state.Params,
		selected:    cloneProduct(state.Selected),
		dialog:      state.Dialog,
		mode:        state.Mode,
		draft:       cloneProduct(state.Draft),
		fieldErrors: cloneFields(state.FieldErrors),
	}
	if err := c.params.Validate(); err != nil {
		c.params = DefaultQueryParams()
	}
	switch c.dialog {
	case DialogForm:
		c.mode = FormCreate
		if c.selected != nil && c.selected.HasID() {
			c.mode = FormEdit
		}
	case DialogDelete:
		if c.selected == nil || !c.selected.HasID() {
			c.dialog = DialogNone
		}
	default:
		c.dialog = DialogNone
	}
	if c.dialog != DialogForm {
		c.mode = ""
	}

	c.save = query.NewMutation(func(ctx context.Context, p Product) (Product, error) {
		if p.HasID() {
			return store.Update(ctx, p)
		}
		return store.Create(ctx, p)
	})
	c.remove = query.NewMutation(func(ctx context.Context, id int64) (struct{}, error) {
		return struct{}{}, store.Delete(ctx, id)
	})
	c.save.Restore(state.FormMutation)
	c.remove.Restore(state.DeleteMutation)
	return c
}

// WithGuard makes writes exclusive across controllers sharing guard.
func (c *ListController) WithGuard(guard MutationGuard) *ListController {
	c.guard = guard
	return c
}

// State snapshots the controller for persistence.
func (c *ListController) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ListState{
		Params:         c.params,
		Selected:       cloneProduct(c.selected),
		Dialog:         c.dialog,
		Mode:           c.mode,
		Draft:          cloneProduct(c.draft),
		FieldErrors:    cloneFields(c.fieldErrors),
		FormMutation:   userFacing(c.save.State(), c.save.Err()),
		DeleteMutation: userFacing(c.remove.State(), c.remove.Err()),
	}
}

// userFacing replaces the raw error text with the message shown to users so
// transport details never reach the session or the page.
func userFacing(state query.MutationState, err error) query.MutationState {
	if err != nil {
		state.Error = Message(err)
	}
	return state
}

// Params returns the current query parameters.
func (c *ListController) Params() QueryParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Selected returns the selected product, if any.
func (c *ListController) Selected() (Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Product{}, false
	}
	return *c.selected, true
}

// Dialog returns the open dialog and, for the form, its mode.
func (c *ListController) Dialog() (DialogKind, FormMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog, c.mode
}

// SetSort toggles the direction when column is already active, otherwise
// sorts ascending by column. The page is kept.
func (c *ListController) SetSort(column string) error {
	if !IsSortable(column) {
		return fmt.Errorf("%w: %q", ErrInvalidSortColumn, column)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	if next.SortBy == column {
		if next.SortDir == SortAsc {
			next.SortDir = SortDesc
		} else {
			next.SortDir = SortAsc
		}
	} else {
		next.SortBy = column
		next.SortDir = SortAsc
	}
	c.params = next
	return nil
}

// SetPage moves to page n. Pages past the last one are left to the server.
func (c *ListController) SetPage(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	next.Page = n
	c.params = next
	return nil
}

// SetPageSize changes the page size and returns to the first page.
func (c *ListController) SetPageSize(n int) error {
	if !IsPageSize(n) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	next.Size = n
	next.Page = 1
	c.params = next
	return nil
}

// BeginCreate opens an empty form.
func (c *ListController) BeginCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
	c.draft = nil
	c.fieldErrors = nil
	c.dialog = DialogForm
	c.mode = FormCreate
	c.save.Reset()
}

// BeginEdit opens the form prefilled with product.
func (c *ListController) BeginEdit(product Product) error {
	if !product.HasID() {
		return ErrMissingID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = cloneProduct(&product)
	c.draft = nil
	c.fieldErrors = nil
	c.dialog = DialogForm
	c.mode = FormEdit
	c.save.Reset()
	return nil
}

// BeginDelete asks for confirmation before deleting product.
func (c *ListController) BeginDelete(product Product) error {
	if !product.HasID() {
		return ErrMissingID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = cloneProduct(&product)
	c.draft = nil
	c.fieldErrors = nil
	c.dialog = DialogDelete
	c.mode = ""
	c.remove.Reset()
	return nil
}

// CloseDialog dismisses any open dialog and forgets the selection.
func (c *ListController) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.save.Reset()
	c.remove.Reset()
}

// SubmitForm validates data and creates or updates the product. With an
// edit selection the selection id wins over any id in data; otherwise the
// id is dropped. On failure the dialog stays open with data kept as draft.
func (c *ListController) SubmitForm(ctx context.Context, data Product) (FormMode, error) {
	c.mu.Lock()
	if c.dialog != DialogForm {
		c.mu.Unlock()
		return "", ErrNoOpenForm
	}
	data = Normalize(data)
	mode := FormCreate
	if c.selected != nil && c.selected.HasID() {
		mode = FormEdit
		data = data.WithID(*c.selected.ID)
	} else {
		data = data.WithoutID()
	}
	c.draft = cloneProduct(&data)
	if err := Validate(data); err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			c.fieldErrors = cloneFields(validationErr.Fields)
		}
		if math.IsNaN(c.draft.Price) || math.IsInf(c.draft.Price, 0) {
			c.draft.Price = 0
		}
		c.mu.Unlock()
		return mode, err
	}
	c.fieldErrors = nil
	c.mu.Unlock()

	err := c.guarded(ctx, FormMutationName, func() error {
		_, err := c.save.Run(ctx, data)
		return err
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return mode, err
	}
	c.dialog = DialogNone
	c.mode = ""
	c.draft = nil
	if mode == FormEdit {
		c.selected = nil
	}
	return mode, nil
}

// ConfirmDelete deletes the selected product. Without an open delete dialog
// or a selection carrying an id it does nothing and reports false.
func (c *ListController) ConfirmDelete(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.dialog != DialogDelete || c.selected == nil || !c.selected.HasID() {
		c.mu.Unlock()
		return false, nil
	}
	id := *c.selected.ID
	c.mu.Unlock()

	err := c.guarded(ctx, DeleteMutationName, func() error {
		_, err := c.remove.Run(ctx, id)
		return err
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return true, err
	}
	c.dialog = DialogNone
	c.selected = nil
	return true, nil
}

// Load reads the page for the current parameters. A result that arrives after
// the parameters changed is returned but not applied; applied reports which.
func (c *ListController) Load(ctx context.Context) (result query.Result[PagedResponse], applied bool) {
	c.mu.Lock()
	params := c.params
	key := params.Key()
	c.mu.Unlock()

	res := c.store.List(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.params.Key() != key {
		return res, false
	}
	c.result = res
	c.loaded = true
	return res, true
}

// Result returns the last applied list result.
func (c *ListController) Result() (query.Result[PagedResponse], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.loaded
}

func (c *ListController) guarded(ctx context.Context, name string, run func() error) error {
	if c.guard == nil {
		return run()
	}
	release, err := c.guard.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer release()
	return run()
}

func (c *ListController) closeLocked() {
	c.dialog = DialogNone
	c.mode = ""
	c.selected = nil
	c.draft = nil
	c.fieldErrors = nil
}

func cloneProduct(p *Product) *Product {
	if p == nil {
		return nil
	}
	cp := *p
	if p.ID != nil {
		id := *p.ID
		cp.ID = &id
	}
	return &cp
}

func cloneFields(fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
