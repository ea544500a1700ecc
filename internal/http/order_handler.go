package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/service"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, userID int64, req service.CreateOrderRequest) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type OrderHandler struct {
	orders  OrderAPI
	timeout time.Duration
}

func NewOrderHandler(orders OrderAPI, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	order, err := h.orders.CreateOrder(ctx, userID, service.CreateOrderRequest{
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, envelope{"order": order})
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"orders": orders})
}
