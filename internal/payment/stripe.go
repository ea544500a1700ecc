package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeConfig carries the keys and webhook secret; it is injected at
// construction, the adapter never reads ambient settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string // defaults to the live API, overridable for tests
	Timeout       time.Duration
}

type StripeProvider struct {
	cfg    StripeConfig
	client *client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripeAPIBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &StripeProvider{
		cfg:    cfg,
		client: newClient("stripe", cfg.Timeout),
	}
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CreateIntent creates a PaymentIntent. Stripe wants the amount in
// minor currency units.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	cents := req.Order.Total.Mul(decimal.NewFromInt(100)).IntPart()

	form := url.Values{}
	form.Set("amount", fmt.Sprint(cents))
	form.Set("currency", "usd")
	form.Set("receipt_email", req.PayerEmail)
	form.Set("metadata[order_id]", fmt.Sprint(req.Order.ID))
	form.Set("metadata[order_number]", req.Order.Number)
	form.Set("metadata[user_id]", fmt.Sprint(req.Order.UserID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := p.client.do(httpReq)
	if err != nil {
		return nil, err
	}

	var pi stripeIntent
	if err := json.Unmarshal(body, &pi); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}

	return &Intent{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       req.Order.Total,
		Currency:     strings.ToUpper(pi.Currency),
	}, nil
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                   string `json:"id"`
			Status               string `json:"status"`
			PaymentMethodDetails struct {
				Type string `json:"type"`
			} `json:"payment_method_details"`
			LastPaymentError struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// ParseWebhook verifies the Stripe-Signature header (t=...,v1=... with
// an HMAC-SHA256 over "<t>.<payload>") before trusting the payload.
func (p *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	timestamp, signatures, err := parseStripeSignature(signatureHeader)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	verified := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrSignatureInvalid
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Data.Object.ID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrMalformedEvent)
	}

	out := &Event{
		IntentID:      event.Data.Object.ID,
		TransactionID: event.Data.Object.ID,
		Method:        event.Data.Object.PaymentMethodDetails.Type,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		out.Kind = EventSucceeded
	case "payment_intent.payment_failed":
		out.Kind = EventFailed
		out.FailureReason = event.Data.Object.LastPaymentError.Message
		if out.FailureReason == "" {
			out.FailureReason = "unknown reason"
		}
	default:
		out.Kind = EventUnknown
	}

	return out, nil
}

func parseStripeSignature(header string) (timestamp string, signatures []string, err error) {
	if header == "" {
		return "", nil, ErrSignatureInvalid
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, ErrSignatureInvalid
	}
	return timestamp, signatures, nil
}

// QueryStatus polls the PaymentIntent; it never mutates local state.
func (p *StripeProvider) QueryStatus(ctx context.Context, intentID string) (*Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/payment_intents/"+intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	body, err := p.client.do(httpReq)
	if err != nil {
		return nil, err
	}

	var pi stripeIntent
	if err := json.Unmarshal(body, &pi); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &Status{
		ProviderStatus: pi.Status,
		Amount:         decimal.NewFromInt(pi.Amount).Div(decimal.NewFromInt(100)),
		Currency:       strings.ToUpper(pi.Currency),
	}, nil
}
