package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adaldean/Perfumes/internal/payment"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/adaldean/Perfumes/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentAPIMock struct {
	intent *payment.Intent
	status *service.PaymentStatus
	err    error

	webhookProvider  string
	webhookSignature string
	intentUserID     int64
	intentOrderID    int64
	intentProvider   string
}

func (m *paymentAPIMock) CreateIntent(_ context.Context, userID, orderID int64, provider, _, _ string) (*payment.Intent, error) {
	m.intentUserID = userID
	m.intentOrderID = orderID
	m.intentProvider = provider
	if m.err != nil {
		return nil, m.err
	}
	return m.intent, nil
}

func (m *paymentAPIMock) HandleWebhook(_ context.Context, provider string, _ []byte, signatureHeader string) error {
	m.webhookProvider = provider
	m.webhookSignature = signatureHeader
	return m.err
}

func (m *paymentAPIMock) QueryStatus(_ context.Context, _ string) (*service.PaymentStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

type staticVerifier int64

func (v staticVerifier) VerifyToken(string) (int64, error) { return int64(v), nil }

func paymentRouter(mock *paymentAPIMock, verifier TokenVerifier) chi.Router {
	h := NewPaymentHandler(mock, 2*time.Second)
	r := chi.NewRouter()
	if verifier != nil {
		r.Use(AuthMiddleware(verifier))
	}
	r.Post("/payments/{provider}/intent", h.CreateIntent)
	r.Get("/payments/{intent_id}", h.QueryStatus)
	r.Post("/webhooks/{provider}", h.Webhook)
	return r
}

func TestCreateIntentRequiresAuth(t *testing.T) {
	mock := &paymentAPIMock{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/stripe/intent", strings.NewReader(`{"order_id":5,"email":"a@b.c"}`))
	paymentRouter(mock, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, mock.intentOrderID)
}

func TestCreateIntentHappyPath(t *testing.T) {
	mock := &paymentAPIMock{
		intent: &payment.Intent{
			IntentID:     "pi_123",
			ClientSecret: "pi_123_secret",
			Amount:       decimal.RequireFromString("234.30"),
			Currency:     "USD",
		},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/stripe/intent", strings.NewReader(`{"order_id":5,"email":"a@b.c"}`))
	req.Header.Set("Authorization", "Bearer sometoken")
	paymentRouter(mock, staticVerifier(7)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), mock.intentUserID)
	assert.Equal(t, int64(5), mock.intentOrderID)
	assert.Equal(t, "stripe", mock.intentProvider)

	body := decodeBody(t, rec)
	intent := body["intent"].(map[string]any)
	assert.Equal(t, "pi_123", intent["intent_id"])
}

func TestCreateIntentValidatesBody(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json":  `{`,
		"missing order": `{"email":"a@b.c"}`,
		"missing email": `{"order_id":5}`,
	} {
		t.Run(name, func(t *testing.T) {
			mock := &paymentAPIMock{}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/payments/stripe/intent", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer sometoken")
			paymentRouter(mock, staticVerifier(7)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestWebhookForwardsProviderSignatureHeader(t *testing.T) {
	mock := &paymentAPIMock{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	paymentRouter(mock, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stripe", mock.webhookProvider)
	assert.Equal(t, "t=1,v1=abc", mock.webhookSignature)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["received"])

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", strings.NewReader(`{}`))
	req.Header.Set("X-Signature", "ts=1,v1=def")
	paymentRouter(mock, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ts=1,v1=def", mock.webhookSignature)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	mock := &paymentAPIMock{err: payment.ErrSignatureInvalid}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	paymentRouter(mock, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestWebhookRejectsMalformedEvent(t *testing.T) {
	mock := &paymentAPIMock{err: payment.ErrMalformedEvent}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`not json`))
	paymentRouter(mock, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRateLimiter(t *testing.T) {
	mock := &paymentAPIMock{}
	h := NewPaymentHandler(mock, 2*time.Second)
	r := chi.NewRouter()
	r.With(WebhookRateLimiter(1, 2)).Post("/webhooks/{provider}", h.Webhook)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes[2:], http.StatusTooManyRequests)
}

func TestQueryStatusEndpoint(t *testing.T) {
	mock := &paymentAPIMock{
		status: &service.PaymentStatus{
			ProviderStatus: "succeeded",
			LocalStatus:    "succeeded",
			Amount:         "234.30",
			Currency:       "USD",
		},
	}
	rec := httptest.NewRecorder()
	paymentRouter(mock, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/pi_123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	status := body["payment"].(map[string]any)
	assert.Equal(t, "succeeded", status["provider_status"])
	assert.Equal(t, "234.30", status["amount"])
}

func TestQueryStatusUnknownIntent(t *testing.T) {
	mock := &paymentAPIMock{err: repository.ErrPaymentNotFound}
	rec := httptest.NewRecorder()
	paymentRouter(mock, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/pi_gone", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
