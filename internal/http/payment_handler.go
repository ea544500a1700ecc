package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/adaldean/Perfumes/internal/payment"
	"github.com/adaldean/Perfumes/internal/service"
	"github.com/go-chi/chi/v5"
)

// Webhook signature headers per provider.
var signatureHeaders = map[string]string{
	"stripe":      "Stripe-Signature",
	"mercadopago": "X-Signature",
}

type PaymentAPI interface {
	CreateIntent(ctx context.Context, userID, orderID int64, provider, payerEmail, payerName string) (*payment.Intent, error)
	HandleWebhook(ctx context.Context, provider string, payload []byte, signatureHeader string) error
	QueryStatus(ctx context.Context, intentID string) (*service.PaymentStatus, error)
}

type PaymentHandler struct {
	payments PaymentAPI
	timeout  time.Duration
}

func NewPaymentHandler(payments PaymentAPI, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		timeout:  timeout,
	}
}

type CreateIntentRequestDTO struct {
	OrderID    int64  `json:"order_id"`
	PayerEmail string `json:"email"`
	PayerName  string `json:"name"`
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateIntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrderID <= 0 || req.PayerEmail == "" {
		respondError(w, http.StatusBadRequest, "order_id and email are required")
		return
	}

	provider := chi.URLParam(r, "provider")
	intent, err := h.payments.CreateIntent(ctx, userID, req.OrderID, provider, req.PayerEmail, req.PayerName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"intent": intent})
}

// Webhook always acknowledges verified events, even for unknown
// references, so the provider stops redelivering. Only a failed
// signature check is rejected.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get(signatureHeaders[provider])
	if err := h.payments.HandleWebhook(ctx, provider, payload, signature); err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			respondError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"received": true})
}

func (h *PaymentHandler) QueryStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	intentID := chi.URLParam(r, "intent_id")
	if intentID == "" {
		respondError(w, http.StatusBadRequest, "intent_id is required")
		return
	}

	status, err := h.payments.QueryStatus(ctx, intentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{"payment": status})
}
