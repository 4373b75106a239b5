package products

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/productdesk/productdesk/internal/platform/httpx"
	"github.com/productdesk/productdesk/internal/query"
	"github.com/productdesk/productdesk/internal/shared"
	"github.com/productdesk/productdesk/internal/view"
)

const (
	listStateKey = "products.list"
	listPath     = "/products"
	listTemplate = "pages/products.html"
)

// Handler serves the product list and turns form posts into controller intents.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	templates *view.Engine
	csrf      *shared.CSRFManager
	locks     *shared.LockManager
}

// NewHandler constructs the product handler.
func NewHandler(logger *slog.Logger, store *Store, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, templates: templates, csrf: csrf}
}

// WithLocks makes product writes exclusive per browser session across
// requests and instances sharing the Redis behind locks.
func (h *Handler) WithLocks(locks *shared.LockManager) *Handler {
	h.locks = locks
	return h
}

// List renders the current page together with any open dialog.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	res, _ := ctrl.Load(r.Context())
	if res.Status == query.StatusError {
		h.logger.Error("list products failed", slog.String("key", ctrl.Params().Key().String()), slog.Any("error", res.Err))
	}
	state := ctrl.State()
	h.persist(r, ctrl)
	h.markPending(r, &state)
	h.render(w, r, listTemplate, buildListPage(state, res), http.StatusOK)
}

// State returns the controller state and the list result as JSON.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	res, _ := ctrl.Load(r.Context())
	h.persist(r, ctrl)

	payload := stateResponse{
		State: ctrl.State(),
		Key:   res.Key.String(),
		List: listSnapshot{
			Status:   res.Status,
			Fetching: res.Fetching,
			Stale:    res.Stale,
		},
	}
	if res.HasData {
		data := res.Data
		payload.List.Data = &data
		payload.List.UpdatedAt = res.UpdatedAt
	}
	if res.Err != nil {
		payload.List.Error = Message(res.Err)
	}
	httpx.JSON(w, http.StatusOK, payload)
}

// Sort handles a click on a sortable column header.
func (h *Handler) Sort(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	if err := ctrl.SetSort(r.PostFormValue("column")); err != nil {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Cannot sort by that column.")
		return
	}
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Page handles a click on a pagination link.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	page, err := strconv.Atoi(r.PostFormValue("page"))
	if err == nil {
		err = ctrl.SetPage(page)
	}
	if err != nil {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Invalid page.")
		return
	}
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Size handles the page size selector.
func (h *Handler) Size(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	size, err := strconv.Atoi(r.PostFormValue("size"))
	if err == nil {
		err = ctrl.SetPageSize(size)
	}
	if err != nil {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Invalid page size.")
		return
	}
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Refresh drops the cached pages so the list is fetched again.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.store.Invalidate(r.Context())
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// New opens the create form.
func (h *Handler) New(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.BeginCreate()
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Edit opens the edit form for the product in the URL.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	product, ok := h.lookup(w, r, ctrl)
	if !ok {
		return
	}
	if err := ctrl.BeginEdit(product); err != nil {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Product cannot be edited.")
		return
	}
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Delete opens the delete confirmation for the product in the URL.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	product, ok := h.lookup(w, r, ctrl)
	if !ok {
		return
	}
	if err := ctrl.BeginDelete(product); err != nil {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Product cannot be deleted.")
		return
	}
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// CloseDialog dismisses the open dialog.
func (h *Handler) CloseDialog(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	ctrl.CloseDialog()
	h.persist(r, ctrl)
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

// Submit saves the product form.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ctrl := h.controller(r)
	product := parseProductForm(r.PostForm).toProduct()
	mode, err := ctrl.SubmitForm(r.Context(), product)
	h.persist(r, ctrl)

	verb := "create"
	if mode == FormEdit {
		verb = "update"
	}
	var validationErr *ValidationError
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, shared.FlashSuccess, "Product "+verb+"d", "The product has been successfully "+verb+"d.")
	case errors.As(err, &validationErr):
		http.Redirect(w, r, listPath, http.StatusSeeOther)
	case errors.Is(err, ErrNoOpenForm):
		http.Redirect(w, r, listPath, http.StatusSeeOther)
	case errors.Is(err, query.ErrMutationPending):
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "The product is still being saved.")
	default:
		h.logger.Warn(verb+" product failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Failed to "+verb+" product: "+Message(err))
	}
}

// ConfirmDelete deletes the selected product.
func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(r)
	attempted, err := ctrl.ConfirmDelete(r.Context())
	h.persist(r, ctrl)

	switch {
	case !attempted:
		http.Redirect(w, r, listPath, http.StatusSeeOther)
	case errors.Is(err, query.ErrMutationPending):
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "The product is still being deleted.")
	case err != nil:
		h.logger.Warn("delete product failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Failed to delete product: "+Message(err))
	default:
		h.redirectWithFlash(w, r, shared.FlashSuccess, "Product deleted", "The product has been successfully deleted.")
	}
}

// lookup resolves the {id} URL parameter, preferring the row already shown
// on the current page over a remote fetch.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, ctrl *ListController) (Product, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Invalid product ID.")
		return Product{}, false
	}
	if res, found := h.store.Peek(ctrl.Params()); found && res.HasData {
		for _, p := range res.Data.Content {
			if p.IDValue() == id {
				return p, true
			}
		}
	}
	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.logger.Warn("get product failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, shared.FlashError, "Error", "Failed to load product: "+Message(err))
		return Product{}, false
	}
	return product, true
}

func (h *Handler) controller(r *http.Request) *ListController {
	state := DefaultListState()
	if sess := shared.RequestSession(r); sess != nil {
		if _, err := sess.GetJSON(listStateKey, &state); err != nil {
			h.logger.Warn("discard stored list state", slog.Any("error", err))
			state = DefaultListState()
		}
	}
	ctrl := NewListController(h.store, state)
	if guard := h.guard(r); guard != nil {
		ctrl.WithGuard(guard)
	}
	return ctrl
}

func (h *Handler) guard(r *http.Request) *sessionGuard {
	sess := shared.RequestSession(r)
	if h.locks == nil || sess == nil {
		return nil
	}
	return &sessionGuard{locks: h.locks, sessionID: sess.ID}
}

// markPending flags writes that another request of this session is still
// running so the dialog disables its submit button.
func (h *Handler) markPending(r *http.Request, state *ListState) {
	guard := h.guard(r)
	if guard == nil {
		return
	}
	for name, target := range map[string]*query.MutationState{
		FormMutationName:   &state.FormMutation,
		DeleteMutationName: &state.DeleteMutation,
	} {
		held, err := guard.held(r.Context(), name)
		if err != nil {
			h.logger.Warn("check mutation lock", slog.String("mutation", name), slog.Any("error", err))
			continue
		}
		if held {
			*target = query.MutationState{Status: query.MutationPending}
		}
	}
}

func (h *Handler) persist(r *http.Request, ctrl *ListController) {
	sess := shared.RequestSession(r)
	if sess == nil {
		return
	}
	if err := sess.SetJSON(listStateKey, ctrl.State()); err != nil {
		h.logger.Error("store list state", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data ListPage, status int) {
	sess := shared.RequestSession(r)
	csrfToken, _ := h.csrf.EnsureToken(sess)
	var flashes []shared.FlashMessage
	if sess != nil {
		flashes = sess.PopFlashes()
	}
	viewData := view.TemplateData{
		Title:       "Products",
		CSRFToken:   csrfToken,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, title, message string) {
	if sess := shared.RequestSession(r); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Title: title, Message: message})
	}
	http.Redirect(w, r, listPath, http.StatusSeeOther)
}

type sessionGuard struct {
	locks     *shared.LockManager
	sessionID string
}

func (g *sessionGuard) Acquire(ctx context.Context, name string) (func(), error) {
	release, err := g.locks.Acquire(ctx, shared.MutationLockKey(g.sessionID, name))
	if errors.Is(err, shared.ErrLockHeld) {
		return nil, query.ErrMutationPending
	}
	return release, err
}

func (g *sessionGuard) held(ctx context.Context, name string) (bool, error) {
	return g.locks.Held(ctx, shared.MutationLockKey(g.sessionID, name))
}

type stateResponse struct {
	State ListState    `json:"state"`
	Key   string       `json:"key"`
	List  listSnapshot `json:"list"`
}

type listSnapshot struct {
	Status    query.Status   `json:"status"`
	Fetching  bool           `json:"fetching"`
	Stale     bool           `json:"stale"`
	Data      *PagedResponse `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
}
