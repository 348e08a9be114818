package ports

import (
	"context"

	"github.com/katanaid/katana/core"
)

// FingerprintRegistry is the append-only record of fingerprint usage.
// Sightings are never mutated or deleted; ordering is by timestamp.
type FingerprintRegistry interface {
	Record(ctx context.Context, sighting core.Sighting) error
	History(ctx context.Context, fingerprintID string) ([]core.Sighting, error)
}

// AccountStore persists accounts created through the signup gate.
type AccountStore interface {
	// Create stores a new account. Returns core.ErrAccountExists when the
	// username or email is already taken.
	Create(ctx context.Context, account *core.Account) error
	GetByEmail(ctx context.Context, email string) (*core.Account, error)
}
