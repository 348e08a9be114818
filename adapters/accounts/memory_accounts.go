package accounts

import (
	"context"
	"strings"
	"sync"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// MemoryAccountStore is an in-memory implementation of the AccountStore
// interface.
type MemoryAccountStore struct {
	byEmail    map[string]*core.Account
	byUsername map[string]*core.Account
	mu         sync.RWMutex
}

// NewMemoryAccountStore creates a new in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byEmail:    make(map[string]*core.Account),
		byUsername: make(map[string]*core.Account),
	}
}

// Create stores a new account, enforcing unique username and email.
func (s *MemoryAccountStore) Create(ctx context.Context, account *core.Account) error {
	email := strings.ToLower(account.Email)
	username := strings.ToLower(account.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return core.ErrAccountExists
	}
	if _, ok := s.byUsername[username]; ok {
		return core.ErrAccountExists
	}

	copied := *account
	s.byEmail[email] = &copied
	s.byUsername[username] = &copied
	return nil
}

// GetByEmail retrieves an account by email.
func (s *MemoryAccountStore) GetByEmail(ctx context.Context, email string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, core.ErrInvalidAccount
	}

	copied := *account
	return &copied, nil
}

var _ ports.AccountStore = (*MemoryAccountStore)(nil)
