package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/google/uuid"
)

type PaymentRepository interface {
	UpsertPaymentIntent(ctx context.Context, payment *domain.Payment) error
	GetPaymentByIntentID(ctx context.Context, intentID string) (*domain.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	ApplyPaymentSuccess(ctx context.Context, intentID, transactionID, method string) (bool, error)
	ApplyPaymentFailure(ctx context.Context, intentID, reason string) (bool, error)
}

const paymentColumns = `id, order_id, provider, intent_id, COALESCE(transaction_id, ''), amount, currency, status, COALESCE(method, ''), COALESCE(failure_reason, ''), created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Provider,
		&p.IntentID,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Method,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertPaymentIntent keeps the 1:1 order/payment invariant: a repeat
// intent creation for the same order replaces the provider reference on
// the existing row instead of inserting a second one.
func (r *Repository) UpsertPaymentIntent(ctx context.Context, payment *domain.Payment) error {
	query := `INSERT INTO payments (order_id, provider, intent_id, amount, currency, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          ON CONFLICT (order_id)
	          DO UPDATE SET provider = EXCLUDED.provider,
	                        intent_id = EXCLUDED.intent_id,
	                        amount = EXCLUDED.amount,
	                        currency = EXCLUDED.currency,
	                        status = EXCLUDED.status,
	                        updated_at = NOW()
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		payment.OrderID,
		payment.Provider,
		payment.IntentID,
		payment.Amount,
		payment.Currency,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE intent_id = $1`, paymentColumns)

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, intentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by intent id: %w", err)
	}
	return p, nil
}

func (r *Repository) GetPaymentByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE order_id = $1`, paymentColumns)

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by order id: %w", err)
	}
	return p, nil
}

// ApplyPaymentSuccess marks the payment succeeded, moves the order to
// processing and enqueues an outbox event, all in one transaction.
// Returns false without touching anything when the payment is already
// succeeded, which is what makes webhook redelivery a no-op.
func (r *Repository) ApplyPaymentSuccess(ctx context.Context, intentID, transactionID, method string) (bool, error) {
	return r.applyPaymentOutcome(ctx, intentID, func(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
		query := `UPDATE payments
		          SET status = $2, transaction_id = $3, method = $4, updated_at = NOW()
		          WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, p.ID, domain.PaymentStatusSucceeded, transactionID, method); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		if err := transitionOrderTx(ctx, tx, p.OrderID, domain.OrderStatusProcessing); err != nil {
			return err
		}

		return insertOutboxEventTx(ctx, tx, p.OrderID, "order.paid", map[string]any{
			"order_id":       p.OrderID,
			"intent_id":      intentID,
			"transaction_id": transactionID,
			"amount":         p.Amount,
			"currency":       p.Currency,
			"paid_at":        time.Now().UTC(),
		})
	})
}

// ApplyPaymentFailure marks the payment failed with the provider's
// reason and cancels the order atomically. Idempotent like success.
func (r *Repository) ApplyPaymentFailure(ctx context.Context, intentID, reason string) (bool, error) {
	return r.applyPaymentOutcome(ctx, intentID, func(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
		query := `UPDATE payments
		          SET status = $2, failure_reason = $3, updated_at = NOW()
		          WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, p.ID, domain.PaymentStatusFailed, reason); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		if err := transitionOrderTx(ctx, tx, p.OrderID, domain.OrderStatusCancelled); err != nil {
			return err
		}

		return insertOutboxEventTx(ctx, tx, p.OrderID, "order.payment_failed", map[string]any{
			"order_id":  p.OrderID,
			"intent_id": intentID,
			"reason":    reason,
			"failed_at": time.Now().UTC(),
		})
	})
}

func (r *Repository) applyPaymentOutcome(ctx context.Context, intentID string, apply func(context.Context, *sql.Tx, *domain.Payment) error) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE intent_id = $1 FOR UPDATE`, paymentColumns)
	p, err := scanPayment(tx.QueryRowContext(ctx, query, intentID))
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrPaymentNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock payment row: %w", err)
	}

	if p.Status == domain.PaymentStatusSucceeded || p.Status == domain.PaymentStatusFailed {
		// Terminal already; a redelivered event changes nothing.
		return false, nil
	}

	if err := apply(ctx, tx, p); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment tx: %w", err)
	}
	return true, nil
}

func insertOutboxEventTx(ctx context.Context, tx *sql.Tx, orderID int64, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `INSERT INTO order_events (id, order_id, event_type, payload, processed, created_at)
	          VALUES ($1, $2, $3, $4, FALSE, NOW())`

	if _, err := tx.ExecContext(ctx, query, uuid.New(), orderID, eventType, body); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
