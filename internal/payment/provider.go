// Package payment holds the gateway adapters for the two external
// payment providers. Each adapter speaks the provider's wire format and
// verifies its webhook signatures; local state reconciliation lives in
// the payment service on top of this interface.
package payment

import (
	"context"
	"errors"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("malformed webhook payload")
)

type IntentRequest struct {
	Order      *domain.Order
	PayerEmail string
	PayerName  string
}

// Intent is the provider-side object the client completes the charge
// against: a client secret for card processors, a redirect URL for
// hosted checkouts.
type Intent struct {
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret,omitempty"`
	RedirectURL  string          `json:"redirect_url,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type EventKind int

const (
	EventUnknown EventKind = iota
	EventSucceeded
	EventFailed
)

// Event is a verified, normalized webhook notification.
type Event struct {
	Kind          EventKind
	IntentID      string
	TransactionID string
	Method        string
	FailureReason string
}

type Status struct {
	ProviderStatus string          `json:"provider_status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// Provider is implemented once per gateway and selected by
// configuration, never by runtime type inspection.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	QueryStatus(ctx context.Context, intentID string) (*Status, error)
}
