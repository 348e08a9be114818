package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// SignupService creates accounts behind the captcha gate. Every signup spends
// one verification token; a replayed token is rejected through the ledger.
type SignupService struct {
	tokenizer ports.Tokenizer
	ledger    ports.TokenLedger
	accounts  ports.AccountStore
}

// NewSignupService creates a new signup service.
func NewSignupService(tokenizer ports.Tokenizer, ledger ports.TokenLedger, accounts ports.AccountStore) *SignupService {
	return &SignupService{
		tokenizer: tokenizer,
		ledger:    ledger,
		accounts:  accounts,
	}
}

// CreateAccount validates the verification token, enforces single use and
// stores the new account.
func (s *SignupService) CreateAccount(ctx context.Context, captchaToken, username, email, password string) (*core.Account, error) {
	claims, err := s.tokenizer.Validate(captchaToken)
	if err != nil {
		return nil, err
	}

	redeemed, err := s.ledger.IsRedeemed(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token redemption: %w", err)
	}
	if redeemed {
		return nil, core.ErrTokenRedeemed
	}

	if err := validateSignup(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &core.Account{
		ID:           uuid.New().String(),
		Username:     strings.ToLower(username),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	// The ledger entry only needs to outlive the token itself.
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.ledger.Redeem(ctx, claims.TokenID, ttl); err != nil {
		return nil, fmt.Errorf("failed to redeem token: %w", err)
	}

	return account, nil
}

func validateSignup(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("%w: username, email and password are required", core.ErrInvalidAccount)
	}
	if len(username) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters", core.ErrInvalidAccount)
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", core.ErrInvalidAccount)
	}
	if _, _, ok := splitEmail(email); !ok {
		return fmt.Errorf("%w: invalid email format", core.ErrInvalidAccount)
	}
	return nil
}
