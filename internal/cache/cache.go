package cache

import (
	"context"
	"errors"

	"github.com/adaldean/Perfumes/internal/domain"
)

// CatalogCache holds the active-product listing. Cart contents are never
// cached; totals are always computed from live rows.
type CatalogCache interface {
	GetProducts(ctx context.Context) ([]*domain.Product, error)
	SetProducts(ctx context.Context, products []*domain.Product) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
