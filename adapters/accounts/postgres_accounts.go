package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresAccountStore is a PostgreSQL implementation of the AccountStore
// interface.
type PostgresAccountStore struct {
	db *sqlx.DB
}

// NewPostgresAccountStore creates a new PostgreSQL account store.
func NewPostgresAccountStore(db *sqlx.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// EnsureSchema creates the accounts table if it does not exist.
func (s *PostgresAccountStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, accountsSchema); err != nil {
		return fmt.Errorf("failed to create accounts schema: %w", err)
	}
	return nil
}

// Create stores a new account, mapping unique violations to
// core.ErrAccountExists.
func (s *PostgresAccountStore) Create(ctx context.Context, account *core.Account) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, created_at)
		VALUES (:id, :username, :email, :password_hash, :created_at)
	`, account)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return core.ErrAccountExists
		}
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// GetByEmail retrieves an account by email.
func (s *PostgresAccountStore) GetByEmail(ctx context.Context, email string) (*core.Account, error) {
	var account core.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrInvalidAccount
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return &account, nil
}

var _ ports.AccountStore = (*PostgresAccountStore)(nil)
