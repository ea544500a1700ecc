package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartAPI interface {
	GetCart(ctx context.Context, id service.Identity) (*domain.CartView, error)
	Add(ctx context.Context, id service.Identity, productID int64, quantity int) error
	SetQuantity(ctx context.Context, id service.Identity, productID int64, quantity int) error
	Remove(ctx context.Context, id service.Identity, productID int64) error
}

type CartHandler struct {
	cart    CartAPI
	timeout time.Duration
}

func NewCartHandler(cart CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

func identityFromRequest(r *http.Request) service.Identity {
	if userID := getUserIDFromContext(r.Context()); userID != 0 {
		return service.UserIdentity(userID)
	}
	return service.AnonymousIdentity(getSessionTokenFromContext(r.Context()))
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.GetCart(ctx, identityFromRequest(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		"items":      view.Items,
		"total":      view.Total,
		"item_count": view.ItemCount,
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id must be positive")
		return
	}

	// Missing quantity defaults to 1; an explicit bad value is rejected.
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		respondError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	if err := h.cart.Add(ctx, identityFromRequest(r), req.ProductID, quantity); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, envelope{"message": "product added"})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := productIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// quantity <= 0 is a removal request, handled by the service.
	if err := h.cart.SetQuantity(ctx, identityFromRequest(r), productID, req.Quantity); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"message": "quantity updated"})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := productIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "product_id must be a positive integer")
		return
	}

	if err := h.cart.Remove(ctx, identityFromRequest(r), productID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"message": "product removed"})
}

func productIDParam(r *http.Request) (int64, error) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return productID, nil
}
