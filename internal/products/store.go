package products

import (
	"context"
	"log/slog"

	"github.com/productdesk/productdesk/internal/query"
)

// API is the remote product service as seen by the store.
type API interface {
	List(ctx context.Context, params QueryParams) (PagedResponse, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// Publisher broadcasts an invalidated key prefix to other instances.
type Publisher interface {
	Publish(ctx context.Context, prefix string) error
}

// Store reads product pages through the query cache and invalidates the list
// family after every successful write.
type Store struct {
	api    API
	cache  *query.Cache[PagedResponse]
	bus    Publisher
	logger *slog.Logger
}

// NewStore wires the remote API to cache. bus may be nil.
func NewStore(api API, cache *query.Cache[PagedResponse], bus Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: api, cache: cache, bus: bus, logger: logger}
}

// List returns the cached result for params, fetching when it is missing or stale.
func (s *Store) List(ctx context.Context, params QueryParams) query.Result[PagedResponse] {
	return s.cache.Query(ctx, params.Key(), func(ctx context.Context) (PagedResponse, error) {
		return s.api.List(ctx, params)
	})
}

// Peek returns the cached result for params without fetching.
func (s *Store) Peek(params QueryParams) (query.Result[PagedResponse], bool) {
	return s.cache.Peek(params.Key())
}

// Get fetches one product. Single products are not cached.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	return s.api.Get(ctx, id)
}

// Create stores a new product.
func (s *Store) Create(ctx context.Context, product Product) (Product, error) {
	created, err := s.api.Create(ctx, product.WithoutID())
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, "create")
	return created, nil
}

// Update replaces an existing product.
func (s *Store) Update(ctx context.Context, product Product) (Product, error) {
	if !product.HasID() {
		return Product{}, ErrMissingID
	}
	updated, err := s.api.Update(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, "update")
	return updated, nil
}

// Delete removes a product.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "delete")
	return nil
}

// Invalidate drops every cached list page.
func (s *Store) Invalidate(ctx context.Context) int {
	return s.invalidate(ctx, "manual")
}

func (s *Store) invalidate(ctx context.Context, reason string) int {
	n := s.cache.Invalidate(ListFamily)
	s.logger.Debug("product list invalidated", slog.String("reason", reason), slog.Int("entries", n))
	if s.bus == nil {
		return n
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), ListFamily); err != nil {
		s.logger.Warn("publish invalidation", slog.String("reason", reason), slog.Any("error", err))
	}
	return n
}
