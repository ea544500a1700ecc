package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the persistent cart of an authenticated user. Anonymous
// visitors carry a SessionCart in Redis instead; the two meet in
// CartService.MergeOnLogin.
type Cart struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartLine struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionCart maps product id to quantity for an anonymous session.
type SessionCart map[int64]int

// CartItem is a resolved cart line as returned to clients. Subtotal is
// always recomputed from the current product price, never stored.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func NewCartView(items []CartItem) *CartView {
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.Subtotal)
		count += item.Quantity
	}
	return &CartView{Items: items, Total: total, ItemCount: count}
}
