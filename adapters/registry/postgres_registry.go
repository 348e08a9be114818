package registry

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

const sightingsSchema = `
CREATE TABLE IF NOT EXISTS fingerprint_sightings (
	id BIGSERIAL PRIMARY KEY,
	fingerprint_id TEXT NOT NULL,
	account_ref TEXT NOT NULL,
	outcome TEXT NOT NULL,
	seen_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sightings_fingerprint ON fingerprint_sightings (fingerprint_id, seen_at);
`

// PostgresRegistry is a PostgreSQL implementation of the FingerprintRegistry
// interface. The sightings table is insert-only; rows are never updated or
// deleted, which keeps the full abuse history reviewable.
type PostgresRegistry struct {
	db *sqlx.DB
}

// NewPostgresRegistry creates a new PostgreSQL fingerprint registry.
func NewPostgresRegistry(db *sqlx.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// EnsureSchema creates the sightings table if it does not exist.
func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sightingsSchema); err != nil {
		return fmt.Errorf("failed to create sightings schema: %w", err)
	}
	return nil
}

// Record appends a sighting.
func (r *PostgresRegistry) Record(ctx context.Context, sighting core.Sighting) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO fingerprint_sightings (fingerprint_id, account_ref, outcome, seen_at)
		VALUES (:fingerprint_id, :account_ref, :outcome, :seen_at)
	`, sighting)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// History returns all sightings for a fingerprint ordered by timestamp.
func (r *PostgresRegistry) History(ctx context.Context, fingerprintID string) ([]core.Sighting, error) {
	var history []core.Sighting
	err := r.db.SelectContext(ctx, &history, `
		SELECT fingerprint_id, account_ref, outcome, seen_at
		FROM fingerprint_sightings
		WHERE fingerprint_id = $1
		ORDER BY seen_at ASC
	`, fingerprintID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return history, nil
}

var _ ports.FingerprintRegistry = (*PostgresRegistry)(nil)
