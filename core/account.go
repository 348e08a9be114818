package core

import "time"

// Account is a user account created through the token-gated signup flow.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// VerificationClaims is the decoded content of a verification token.
// The token is self-contained: validating it never touches the session store.
type VerificationClaims struct {
	SessionID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
