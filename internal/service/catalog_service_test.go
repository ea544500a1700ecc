package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adaldean/Perfumes/internal/cache"
	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogCache struct {
	mu       sync.Mutex
	products []*domain.Product
	sets     chan []*domain.Product
}

func newFakeCatalogCache() *fakeCatalogCache {
	return &fakeCatalogCache{sets: make(chan []*domain.Product, 1)}
}

func (f *fakeCatalogCache) GetProducts(_ context.Context) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.products == nil {
		return nil, cache.ErrCacheMiss
	}
	return f.products, nil
}

func (f *fakeCatalogCache) SetProducts(_ context.Context, products []*domain.Product) error {
	f.mu.Lock()
	f.products = products
	f.mu.Unlock()
	f.sets <- products
	return nil
}

func (f *fakeCatalogCache) Invalidate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = nil
	return nil
}

func TestListProductsFallsBackToRepoOnMiss(t *testing.T) {
	products := testProducts()
	c := newFakeCatalogCache()
	svc := NewCatalogService(products, c)

	listed, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	// The listing is written back to the cache asynchronously.
	select {
	case cached := <-c.sets:
		assert.Len(t, cached, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("cache was never populated")
	}
}

func TestListProductsServesFromCache(t *testing.T) {
	repo := testProducts()
	c := newFakeCatalogCache()
	c.products = []*domain.Product{
		{ID: 42, Name: "Cached Only", Price: decimal.RequireFromString("1.00"), Active: true},
	}
	svc := NewCatalogService(repo, c)

	listed, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(42), listed[0].ID)
}

func TestListProductsSkipsInactive(t *testing.T) {
	repo := testProducts()
	repo.products[2].Active = false
	svc := NewCatalogService(repo, newFakeCatalogCache())

	listed, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}
