// Package quotas persists per-owner storage limits.
package quotas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetLimit(ctx context.Context, ownerID string) (int64, error) {
	query := `SELECT limit_bytes FROM quota_accounts WHERE owner_id = $1`

	var limit int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return limit, nil
}

// Ensure uses a no-op upsert so that an existing row is returned and locked
// in the same statement.
func (r *PostgresRepository) Ensure(ctx context.Context, ownerID string, defaultLimit int64) (int64, error) {
	query := `
		INSERT INTO quota_accounts (owner_id, limit_bytes)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING limit_bytes
	`
	var limit int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, defaultLimit).Scan(&limit); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return limit, nil
}

func (r *PostgresRepository) ApplyIncrease(ctx context.Context, ownerID string, delta, defaultLimit int64) (int64, error) {
	query := `
		INSERT INTO quota_accounts (owner_id, limit_bytes)
		VALUES ($1, $2 + $3)
		ON CONFLICT (owner_id) DO UPDATE
			SET limit_bytes = quota_accounts.limit_bytes + $3, updated_at = now()
		RETURNING limit_bytes
	`
	var limit int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, defaultLimit, delta).Scan(&limit); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return limit, nil
}
