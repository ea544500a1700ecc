// Package session stores anonymous shopping carts in Redis, keyed by a
// session token cookie. Carts live only as long as the session; logging
// in merges them into the user's persistent cart and deletes the key.
package session

import (
	"context"
	"errors"

	"github.com/adaldean/Perfumes/internal/domain"
)

type Store interface {
	Get(ctx context.Context, token string) (domain.SessionCart, error)
	Set(ctx context.Context, token string, cart domain.SessionCart) error
	Delete(ctx context.Context, token string) error
}

var ErrSessionNotFound = errors.New("session cart not found")
