package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/payment"
	"github.com/adaldean/Perfumes/internal/repository"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

type PaymentService struct {
	providers map[string]payment.Provider
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
}

func NewPaymentService(payments repository.PaymentRepository, orders repository.OrderRepository, providers ...payment.Provider) *PaymentService {
	byName := make(map[string]payment.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &PaymentService{
		providers: byName,
		payments:  payments,
		orders:    orders,
	}
}

func (s *PaymentService) provider(name string) (payment.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// CreateIntent asks the provider for a payment intent and upserts the
// local Payment row keyed by order. The row is only written after the
// provider call succeeds, so a failed call leaves no dangling state;
// a repeat call replaces the provider reference on the existing row.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, orderID int64, providerName, payerEmail, payerName string) (*payment.Intent, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}

	intent, err := p.CreateIntent(ctx, payment.IntentRequest{
		Order:      order,
		PayerEmail: payerEmail,
		PayerName:  payerName,
	})
	if err != nil {
		return nil, err
	}

	record := &domain.Payment{
		OrderID:  order.ID,
		Provider: p.Name(),
		IntentID: intent.IntentID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Status:   domain.PaymentStatusProcessing,
	}
	if err := s.payments.UpsertPaymentIntent(ctx, record); err != nil {
		return nil, err
	}

	log.Printf("payment intent %s created for order %s via %s", intent.IntentID, order.Number, p.Name())
	return intent, nil
}

// HandleWebhook verifies and applies a provider event. Events for
// unknown references are logged and accepted so the provider stops
// retrying; redelivered events for settled payments are no-ops.
func (s *PaymentService) HandleWebhook(ctx context.Context, providerName string, payload []byte, signatureHeader string) error {
	p, err := s.provider(providerName)
	if err != nil {
		return err
	}

	event, err := p.ParseWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}

	switch event.Kind {
	case payment.EventSucceeded:
		applied, err := s.payments.ApplyPaymentSuccess(ctx, event.IntentID, event.TransactionID, event.Method)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Printf("webhook for unknown reference %s from %s, dropping", event.IntentID, providerName)
			return nil
		}
		if err != nil {
			return err
		}
		if applied {
			log.Printf("payment %s succeeded", event.IntentID)
		}
	case payment.EventFailed:
		applied, err := s.payments.ApplyPaymentFailure(ctx, event.IntentID, event.FailureReason)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Printf("webhook for unknown reference %s from %s, dropping", event.IntentID, providerName)
			return nil
		}
		if err != nil {
			return err
		}
		if applied {
			log.Printf("payment %s failed: %s", event.IntentID, event.FailureReason)
		}
	default:
		log.Printf("ignoring %s event for %s", providerName, event.IntentID)
	}

	return nil
}

type PaymentStatus struct {
	ProviderStatus string               `json:"provider_status"`
	LocalStatus    domain.PaymentStatus `json:"local_status"`
	Amount         string               `json:"amount"`
	Currency       string               `json:"currency"`
}

// QueryStatus is the polling fallback to webhooks. Strictly read-only.
func (s *PaymentService) QueryStatus(ctx context.Context, intentID string) (*PaymentStatus, error) {
	record, err := s.payments.GetPaymentByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	p, err := s.provider(record.Provider)
	if err != nil {
		return nil, err
	}

	remote, err := p.QueryStatus(ctx, intentID)
	if err != nil {
		return nil, err
	}

	return &PaymentStatus{
		ProviderStatus: remote.ProviderStatus,
		LocalStatus:    record.Status,
		Amount:         record.Amount.StringFixed(2),
		Currency:       record.Currency,
	}, nil
}
