package ports

import "github.com/katanaid/katana/core"

// Tokenizer mints and validates verification tokens. Tokens are
// self-contained so downstream consumers never need the session store.
type Tokenizer interface {
	// Issue mints a signed token bound to a consumed session.
	Issue(sessionID string) (string, error)

	// Validate checks signature integrity and expiry. Tokens signed with an
	// unknown or retired key are rejected unless a grace key is configured.
	Validate(token string) (*core.VerificationClaims, error)
}
