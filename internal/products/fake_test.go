package products

import (
	"context"
	"sync"
)

// fakeAPI is an in-memory stand-in for the remote product service.
type fakeAPI struct {
	mu         sync.Mutex
	items      []Product
	nextID     int64
	listCalls  int
	lastParams QueryParams
	created    []Product
	updated    []Product
	deleted    []int64

	createStarted chan struct{}
	createRelease chan struct{}

	listErr   error
	createErr error
	updateErr error
	deleteErr error
}

func newFakeAPI(items ...Product) *fakeAPI {
	api := &fakeAPI{nextID: 1}
	for _, p := range items {
		api.items = append(api.items, p.WithID(api.nextID))
		api.nextID++
	}
	return api
}

func (f *fakeAPI) List(ctx context.Context, params QueryParams) (PagedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastParams = params
	if f.listErr != nil {
		return PagedResponse{}, f.listErr
	}
	total := len(f.items)
	totalPages := (total + params.Size - 1) / params.Size
	start := min((params.Page-1)*params.Size, total)
	end := min(start+params.Size, total)
	content := append([]Product{}, f.items[start:end]...)
	return PagedResponse{
		Content:       content,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		Size:          params.Size,
		Number:        params.Page,
		First:         params.Page == 1,
		Last:          params.Page >= totalPages,
		Empty:         len(content) == 0,
	}, nil
}

func (f *fakeAPI) Get(ctx context.Context, id int64) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if p.IDValue() == id {
			return p, nil
		}
	}
	return Product{}, &HTTPError{Op: "get product", Status: 404, Message: "Could not find product"}
}

func (f *fakeAPI) Create(ctx context.Context, product Product) (Product, error) {
	if f.createStarted != nil {
		close(f.createStarted)
		<-f.createRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, product)
	if f.createErr != nil {
		return Product{}, f.createErr
	}
	stored := product.WithID(f.nextID)
	f.nextID++
	f.items = append(f.items, stored)
	return stored, nil
}

func (f *fakeAPI) Update(ctx context.Context, product Product) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, product)
	if f.updateErr != nil {
		return Product{}, f.updateErr
	}
	for i, p := range f.items {
		if p.IDValue() == product.IDValue() {
			f.items[i] = product
		}
	}
	return product, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.items[:0]
	for _, p := range f.items {
		if p.IDValue() != id {
			kept = append(kept, p)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type recordingPublisher struct {
	mu       sync.Mutex
	prefixes []string
}

func (p *recordingPublisher) Publish(ctx context.Context, prefix string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixes = append(p.prefixes, prefix)
	return nil
}
