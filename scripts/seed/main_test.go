package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productdesk/productdesk/internal/products"
)

type stubCreator struct {
	created []products.Product
	failAt  int
}

func (s *stubCreator) Create(_ context.Context, p products.Product) (products.Product, error) {
	if s.failAt > 0 && len(s.created)+1 == s.failAt {
		return products.Product{}, errors.New("boom")
	}
	s.created = append(s.created, p)
	return p, nil
}

func TestBundledCatalogIsValid(t *testing.T) {
	items, err := parseCatalog(defaultCatalog)
	require.NoError(t, err)
	assert.Len(t, items, 12)
	for _, p := range items {
		assert.False(t, p.HasID())
	}
}

func TestParseCatalogRejectsInvalidProduct(t *testing.T) {
	_, err := parseCatalog([]byte("products:\n  - name: \"\"\n    description: x\n    price: 1\n"))
	assert.ErrorContains(t, err, "product 1")
}

func TestSeedStopsAtFirstFailure(t *testing.T) {
	items, err := parseCatalog(defaultCatalog)
	require.NoError(t, err)

	stub := &stubCreator{failAt: 3}
	n, err := seed(context.Background(), stub, items)
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, stub.created, 2)
}
