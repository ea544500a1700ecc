package service

import "errors"

var (
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrNotOwner           = errors.New("order belongs to another user")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrMissingField       = errors.New("required field is missing")
)
