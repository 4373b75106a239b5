package products

import "github.com/go-chi/chi/v5"

// MountRoutes registers the product routes on r, which is mounted at /products.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/state", h.State)
	r.Post("/sort", h.Sort)
	r.Post("/page", h.Page)
	r.Post("/size", h.Size)
	r.Post("/refresh", h.Refresh)
	r.Post("/new", h.New)
	r.Post("/dialog/close", h.CloseDialog)
	r.Post("/submit", h.Submit)
	r.Post("/delete", h.ConfirmDelete)
	r.Post("/{id}/edit", h.Edit)
	r.Post("/{id}/delete", h.Delete)
}
