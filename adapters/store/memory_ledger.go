package store

import (
	"context"
	"sync"
	"time"

	"github.com/katanaid/katana/ports"
)

// MemoryTokenLedger is an in-memory implementation of the TokenLedger
// interface.
type MemoryTokenLedger struct {
	redeemed map[string]time.Time
	mu       sync.RWMutex
}

// NewMemoryTokenLedger creates a new in-memory token ledger.
func NewMemoryTokenLedger() *MemoryTokenLedger {
	return &MemoryTokenLedger{
		redeemed: make(map[string]time.Time),
	}
}

// Redeem marks a token as spent until its expiry passes.
func (l *MemoryTokenLedger) Redeem(ctx context.Context, tokenID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.redeemed[tokenID] = time.Now().Add(ttl)
	return nil
}

// IsRedeemed checks whether a token has already been spent.
func (l *MemoryTokenLedger) IsRedeemed(ctx context.Context, tokenID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expiry, ok := l.redeemed[tokenID]
	if !ok {
		return false, nil
	}

	// Entries for expired tokens are irrelevant; the token itself is no
	// longer valid.
	if time.Now().After(expiry) {
		return false, nil
	}

	return true, nil
}

var _ ports.TokenLedger = (*MemoryTokenLedger)(nil)
