package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Brand struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

type Gender string

const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderUnisex Gender = "unisex"
)

type Product struct {
	ID          int64           `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Gender      Gender          `json:"gender"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	VolumeML    *int            `json:"volume_ml,omitempty"`
	BrandID     *int64          `json:"brand_id,omitempty"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
