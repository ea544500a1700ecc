package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/google/uuid"
)

type OrderService struct {
	orders repository.OrderRepository
	carts  repository.CartRepository
}

func NewOrderService(orders repository.OrderRepository, carts repository.CartRepository) *OrderService {
	return &OrderService{
		orders: orders,
		carts:  carts,
	}
}

type CreateOrderRequest struct {
	ShippingAddress string
	Phone           string
	Notes           string
}

// CreateOrder snapshots the user's persistent cart into an immutable
// order. Unit prices are frozen at today's values; later product price
// changes never touch the order. The cart is cleared afterwards.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.ShippingAddress) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: shipping_address and phone", ErrMissingField)
	}

	items, err := s.carts.GetCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		UserID:          userID,
		Number:          newOrderNumber(),
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	}

	for _, item := range items {
		productID := item.ProductID
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   &productID,
			ProductName: item.Name,
			UnitPrice:   item.Price,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal,
		})
		order.Total = order.Total.Add(item.Subtotal)
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		// The order exists; a stale cart is an inconvenience, not a failure.
		log.Printf("clear cart after order %s failed: %v", order.Number, err)
	}

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// Transition applies a manual fulfillment transition. The repository
// enforces the status machine against the locked current row.
func (s *OrderService) Transition(ctx context.Context, orderID int64, next domain.OrderStatus) error {
	return s.orders.TransitionOrder(ctx, orderID, next)
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
