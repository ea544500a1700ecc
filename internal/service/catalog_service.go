package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/adaldean/Perfumes/internal/cache"
	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CatalogService struct {
	repo  repository.ProductRepository
	cache cache.CatalogCache
	sfg   singleflight.Group // prevents cache stampede on the listing
}

func NewCatalogService(repo repository.ProductRepository, c cache.CatalogCache) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: c,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	v, err, _ := s.sfg.Do("catalog", func() (interface{}, error) {
		products, err := s.cache.GetProducts(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("catalog cache get error: %v", err) // log and fall through to the DB
		}

		products, errList := s.repo.ListActiveProducts(ctx)
		if errList != nil {
			return nil, errList
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.SetProducts(ctx, products); errSet != nil {
				log.Printf("catalog cache set error: %v", errSet)
			}
		}()

		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *CatalogService) ListBrands(ctx context.Context) ([]*domain.Brand, error) {
	return s.repo.ListBrands(ctx)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.repo.ListCategories(ctx)
}
