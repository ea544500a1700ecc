package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const mercadoPagoAPIBase = "https://api.mercadopago.com"

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
	BackURLBase   string // storefront base URL for checkout return redirects
	BaseURL       string
	Timeout       time.Duration
}

// MercadoPagoProvider drives the regional gateway's hosted checkout:
// a preference is created up front and the buyer is redirected to its
// init_point to pay.
type MercadoPagoProvider struct {
	cfg    MercadoPagoConfig
	client *client
}

func NewMercadoPagoProvider(cfg MercadoPagoConfig) *MercadoPagoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = mercadoPagoAPIBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MercadoPagoProvider{
		cfg:    cfg,
		client: newClient("mercadopago", cfg.Timeout),
	}
}

func (p *MercadoPagoProvider) Name() string {
	return "mercadopago"
}

type mpPreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             mpPayer            `json:"payer"`
	BackURLs          mpBackURLs         `json:"back_urls"`
	AutoReturn        string             `json:"auto_return"`
	ExternalReference string             `json:"external_reference"`
}

type mpPayer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (p *MercadoPagoProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	items := make([]mpPreferenceItem, 0, len(req.Order.Lines))
	for _, line := range req.Order.Lines {
		items = append(items, mpPreferenceItem{
			Title:      line.ProductName,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice.InexactFloat64(),
			CurrencyID: "MXN",
		})
	}

	prefReq := mpPreferenceRequest{
		Items: items,
		Payer: mpPayer{Email: req.PayerEmail, Name: req.PayerName},
		BackURLs: mpBackURLs{
			Success: p.cfg.BackURLBase + "/profile#orders",
			Failure: p.cfg.BackURLBase + "/cart",
			Pending: p.cfg.BackURLBase + "/cart",
		},
		AutoReturn:        "approved",
		ExternalReference: req.Order.Number,
	}

	body, err := json.Marshal(prefReq)
	if err != nil {
		return nil, fmt.Errorf("marshal preference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build preference request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := p.client.do(httpReq)
	if err != nil {
		return nil, err
	}

	var pref mpPreference
	if err := json.Unmarshal(respBody, &pref); err != nil {
		return nil, fmt.Errorf("decode preference response: %w", err)
	}

	return &Intent{
		IntentID:    pref.ID,
		RedirectURL: pref.InitPoint,
		Amount:      req.Order.Total,
		Currency:    "MXN",
	}, nil
}

type mpEvent struct {
	Action string `json:"action"`
	Data   struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		StatusDetail string `json:"status_detail"`
		PreferenceID string `json:"preference_id"`
		MethodID     string `json:"payment_method_id"`
	} `json:"data"`
}

// ParseWebhook verifies the x-signature header ("ts=...,v1=..." with an
// HMAC-SHA256 over "id:<data.id>;ts:<ts>;") before reading the payload.
func (p *MercadoPagoProvider) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	ts, signature, err := parseMPSignature(signatureHeader)
	if err != nil {
		return nil, err
	}

	var event mpEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Data.ID == "" || event.Data.PreferenceID == "" {
		return nil, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}

	manifest := fmt.Sprintf("id:%s;ts:%s;", event.Data.ID, ts)
	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, ErrSignatureInvalid
	}

	out := &Event{
		IntentID:      event.Data.PreferenceID,
		TransactionID: event.Data.ID,
		Method:        event.Data.MethodID,
	}

	switch event.Data.Status {
	case "approved":
		out.Kind = EventSucceeded
	case "rejected", "cancelled":
		out.Kind = EventFailed
		out.FailureReason = event.Data.StatusDetail
		if out.FailureReason == "" {
			out.FailureReason = "unknown reason"
		}
	default:
		out.Kind = EventUnknown
	}

	return out, nil
}

func parseMPSignature(header string) (ts, v1 string, err error) {
	if header == "" {
		return "", "", ErrSignatureInvalid
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return "", "", ErrSignatureInvalid
	}
	return ts, v1, nil
}

type mpPaymentSearch struct {
	Results []struct {
		ID                int64   `json:"id"`
		Status            string  `json:"status"`
		TransactionAmount float64 `json:"transaction_amount"`
		CurrencyID        string  `json:"currency_id"`
	} `json:"results"`
}

func (p *MercadoPagoProvider) QueryStatus(ctx context.Context, intentID string) (*Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/payments/search?preference_id="+intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)

	body, err := p.client.do(httpReq)
	if err != nil {
		return nil, err
	}

	var search mpPaymentSearch
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(search.Results) == 0 {
		return &Status{ProviderStatus: "pending", Currency: "MXN"}, nil
	}

	latest := search.Results[0]
	return &Status{
		ProviderStatus: latest.Status,
		Amount:         decimal.NewFromFloat(latest.TransactionAmount),
		Currency:       latest.CurrencyID,
	}, nil
}
