package service

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/adaldean/Perfumes/internal/session"
	"github.com/shopspring/decimal"
)

// Identity is either an authenticated user id or an anonymous session
// token. Authenticated carts live in Postgres, anonymous ones in Redis.
type Identity struct {
	UserID       int64
	SessionToken string
}

func UserIdentity(userID int64) Identity {
	return Identity{UserID: userID}
}

func AnonymousIdentity(token string) Identity {
	return Identity{SessionToken: token}
}

func (id Identity) Authenticated() bool {
	return id.UserID != 0
}

type CartService struct {
	products repository.ProductRepository
	carts    repository.CartRepository
	sessions session.Store
}

func NewCartService(products repository.ProductRepository, carts repository.CartRepository, sessions session.Store) *CartService {
	return &CartService{
		products: products,
		carts:    carts,
		sessions: sessions,
	}
}

// GetCart returns the current cart with per-line subtotals and the grand
// total, both computed at read time from live product prices.
func (s *CartService) GetCart(ctx context.Context, id Identity) (*domain.CartView, error) {
	if id.Authenticated() {
		items, err := s.carts.GetCartLines(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		return domain.NewCartView(items), nil
	}

	cart, err := s.sessions.Get(ctx, id.SessionToken)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return nil, err
	}

	// Stable ordering for anonymous carts; the map has none.
	productIDs := make([]int64, 0, len(cart))
	for productID := range cart {
		productIDs = append(productIDs, productID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	items := make([]domain.CartItem, 0, len(cart))
	for _, productID := range productIDs {
		product, err := s.products.GetProduct(ctx, productID)
		if errors.Is(err, repository.ErrProductNotFound) {
			// Product vanished since it was added; skip silently.
			continue
		}
		if err != nil {
			return nil, err
		}

		quantity := cart[productID]
		items = append(items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			Subtotal:  product.Price.Mul(decimal.NewFromInt(int64(quantity))),
		})
	}

	return domain.NewCartView(items), nil
}

// Add puts quantity of a product into the cart. For authenticated carts
// a fresh line gets the requested quantity and an existing line is
// incremented by it; anonymous carts always increment.
func (s *CartService) Add(ctx context.Context, id Identity, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	if id.Authenticated() {
		return s.carts.AddLine(ctx, id.UserID, productID, quantity)
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	cart, err := s.sessions.Get(ctx, id.SessionToken)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	if cart == nil {
		cart = domain.SessionCart{}
	}

	cart[productID] += quantity
	return s.sessions.Set(ctx, id.SessionToken, cart)
}

// SetQuantity overwrites the line quantity; anything below 1 is a
// removal request.
func (s *CartService) SetQuantity(ctx context.Context, id Identity, productID int64, quantity int) error {
	if quantity < 1 {
		return s.Remove(ctx, id, productID)
	}

	if id.Authenticated() {
		return s.carts.SetLineQuantity(ctx, id.UserID, productID, quantity)
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	cart, err := s.sessions.Get(ctx, id.SessionToken)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	if cart == nil {
		cart = domain.SessionCart{}
	}

	cart[productID] = quantity
	return s.sessions.Set(ctx, id.SessionToken, cart)
}

// Remove is idempotent; removing an absent product is not an error.
func (s *CartService) Remove(ctx context.Context, id Identity, productID int64) error {
	if id.Authenticated() {
		return s.carts.RemoveLine(ctx, id.UserID, productID)
	}

	cart, err := s.sessions.Get(ctx, id.SessionToken)
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, ok := cart[productID]; !ok {
		return nil
	}
	delete(cart, productID)
	return s.sessions.Set(ctx, id.SessionToken, cart)
}

// MergeOnLogin folds the anonymous session cart into the user's
// persistent cart. The merge itself runs in one DB transaction; product
// ids that no longer resolve are skipped, not fatal. The session key is
// cleared only after a successful merge.
func (s *CartService) MergeOnLogin(ctx context.Context, sessionToken string, userID int64) error {
	if sessionToken == "" {
		return nil
	}

	cart, err := s.sessions.Get(ctx, sessionToken)
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(cart) == 0 {
		return s.sessions.Delete(ctx, sessionToken)
	}

	merged, err := s.carts.MergeLines(ctx, userID, cart)
	if err != nil {
		return err
	}
	log.Printf("merged %d session cart lines into cart of user %d", merged, userID)

	return s.sessions.Delete(ctx, sessionToken)
}
