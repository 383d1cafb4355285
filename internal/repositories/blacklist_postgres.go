package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jcob-sikorski/mech-mashup/internal/models"
	"github.com/jmoiron/sqlx"
)

// PostgresBlacklistRepository implements BlacklistRepository for PostgreSQL
type PostgresBlacklistRepository struct {
	db *sqlx.DB
}

// NewPostgresBlacklistRepository creates a new instance of PostgresBlacklistRepository
func NewPostgresBlacklistRepository(db *sqlx.DB) *PostgresBlacklistRepository {
	return &PostgresBlacklistRepository{db: db}
}

// Add blacklists a token. Adding the same jti twice is not an error.
func (repo *PostgresBlacklistRepository) Add(ctx context.Context, token models.BlacklistedToken) error {
	if token.BlacklistedAt.IsZero() {
		token.BlacklistedAt = time.Now().UTC()
	}
	_, err := repo.db.ExecContext(ctx, `
        INSERT INTO token_blacklist (jti, account_id, expires_at, blacklisted_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (jti) DO NOTHING`,
		token.JTI, token.AccountID, token.ExpiresAt, token.BlacklistedAt)
	if err != nil {
		return fmt.Errorf("error blacklisting token: %w", err)
	}
	return nil
}

// Contains reports whether the jti has been blacklisted
func (repo *PostgresBlacklistRepository) Contains(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`, jti)
	if err != nil {
		return false, fmt.Errorf("error querying token blacklist: %w", err)
	}
	return exists, nil
}

// PurgeExpired deletes entries whose token would have expired anyway
func (repo *PostgresBlacklistRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := repo.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("error purging expired blacklist entries: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
