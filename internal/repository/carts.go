package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/shopspring/decimal"
)

// CartRepository is the persistence surface for authenticated carts.
// One cart row per user, one line per (cart, product); both enforced by
// unique constraints, which also serialize concurrent upserts.
type CartRepository interface {
	GetCartLines(ctx context.Context, userID int64) ([]domain.CartItem, error)
	AddLine(ctx context.Context, userID, productID int64, quantity int) error
	SetLineQuantity(ctx context.Context, userID, productID int64, quantity int) error
	RemoveLine(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error
	MergeLines(ctx context.Context, userID int64, session domain.SessionCart) (int, error)
}

func (r *Repository) getOrCreateCart(ctx context.Context, q queryer, userID int64) (int64, error) {
	// Upsert keyed on the unique user_id constraint; DO UPDATE is a
	// no-op touch so RETURNING always yields the row.
	query := `INSERT INTO carts (user_id, created_at, updated_at) VALUES ($1, NOW(), NOW())
	          ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
	          RETURNING id`

	var cartID int64
	if err := q.QueryRowContext(ctx, query, userID).Scan(&cartID); err != nil {
		return 0, fmt.Errorf("get or create cart: %w", err)
	}
	return cartID, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) GetCartLines(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	query := `SELECT l.product_id, p.name, p.price, l.quantity
	          FROM cart_lines l
	          JOIN carts c ON c.id = l.cart_id
	          JOIN products p ON p.id = l.product_id
	          WHERE c.user_id = $1
	          ORDER BY l.created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// AddLine inserts the line at the requested quantity, or increments an
// existing line by it. The single upsert statement is what makes
// concurrent double-clicks safe.
func (r *Repository) AddLine(ctx context.Context, userID, productID int64, quantity int) error {
	cartID, err := r.getOrCreateCart(ctx, r.db, userID)
	if err != nil {
		return err
	}

	if err := r.checkProductExists(ctx, productID); err != nil {
		return err
	}

	query := `INSERT INTO cart_lines (cart_id, product_id, quantity, created_at, updated_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

// SetLineQuantity overwrites the quantity. Callers treat quantity <= 0
// as removal and never pass it here.
func (r *Repository) SetLineQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	cartID, err := r.getOrCreateCart(ctx, r.db, userID)
	if err != nil {
		return err
	}

	if err := r.checkProductExists(ctx, productID); err != nil {
		return err
	}

	query := `INSERT INTO cart_lines (cart_id, product_id, quantity, created_at, updated_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
		return fmt.Errorf("set cart line quantity: %w", err)
	}
	return nil
}

// RemoveLine is idempotent: removing an absent line is a no-op.
func (r *Repository) RemoveLine(ctx context.Context, userID, productID int64) error {
	query := `DELETE FROM cart_lines
	          WHERE product_id = $2
	            AND cart_id IN (SELECT id FROM carts WHERE user_id = $1)`

	if _, err := r.db.ExecContext(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (r *Repository) ClearCart(ctx context.Context, userID int64) error {
	query := `DELETE FROM cart_lines
	          WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// MergeLines folds an anonymous session cart into the user's persistent
// cart in one transaction. Product ids that no longer resolve are
// skipped; everything that resolves merges or nothing does.
func (r *Repository) MergeLines(ctx context.Context, userID int64, session domain.SessionCart) (int, error) {
	if len(session) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback()

	cartID, err := r.getOrCreateCart(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	merged := 0
	for productID, quantity := range session {
		if quantity <= 0 {
			continue
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("resolve product %d: %w", productID, err)
		}
		if !exists {
			continue
		}

		query := `INSERT INTO cart_lines (cart_id, product_id, quantity, created_at, updated_at)
		          VALUES ($1, $2, $3, NOW(), NOW())
		          ON CONFLICT (cart_id, product_id)
		          DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()`

		if _, err := tx.ExecContext(ctx, query, cartID, productID, quantity); err != nil {
			return 0, fmt.Errorf("merge cart line: %w", err)
		}
		merged++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit merge tx: %w", err)
	}
	return merged, nil
}

func (r *Repository) checkProductExists(ctx context.Context, productID int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}
