package ports

import (
	"context"
	"time"

	"github.com/katanaid/katana/core"
)

// SessionStore owns the ChallengeSession lifecycle. It is the only place a
// session's state is allowed to change.
type SessionStore interface {
	// Put writes a new active session.
	Put(ctx context.Context, session *core.ChallengeSession) error

	// Get returns the session, evaluating expiry lazily against the clock.
	// Returns core.ErrSessionNotFound or core.ErrSessionExpired.
	Get(ctx context.Context, sessionID string) (*core.ChallengeSession, error)

	// TryConsume atomically transitions an active session to consumed.
	// Under concurrent calls for the same ID exactly one caller succeeds;
	// the rest observe core.ErrSessionConsumed. Expired sessions return
	// core.ErrSessionExpired, unknown IDs core.ErrSessionNotFound.
	TryConsume(ctx context.Context, sessionID string) (*core.ChallengeSession, error)
}

// TokenLedger tracks redeemed verification tokens so a consumer can enforce
// single use. Entries only need to outlive the token they refer to.
type TokenLedger interface {
	Redeem(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRedeemed(ctx context.Context, tokenID string) (bool, error)
}
