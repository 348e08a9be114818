package core

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionConsumed = errors.New("session already consumed")

	ErrGestureRejected = errors.New("gesture rejected")

	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenRedeemed = errors.New("token already redeemed")

	ErrUpstreamUnavailable = errors.New("reputation upstream unavailable")
	ErrStoreUnavailable    = errors.New("store unavailable")

	ErrAccountExists  = errors.New("account already exists")
	ErrInvalidAccount = errors.New("invalid account details")
)
