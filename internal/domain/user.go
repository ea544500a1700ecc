package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is created explicitly during registration, in the same
// transaction as the user row.
type Profile struct {
	UserID             int64 `json:"user_id"`
	MustChangePassword bool  `json:"must_change_password"`
}
