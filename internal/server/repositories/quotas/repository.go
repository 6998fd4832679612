package quotas

import "context"

type Repository interface {
	// GetLimit returns the stored limit or common.ErrorNotFound when the
	// owner has no account row yet.
	GetLimit(ctx context.Context, ownerID string) (int64, error)
	// Ensure creates the account with defaultLimit if missing and returns the
	// current limit. Inside a transaction the row stays locked until commit.
	Ensure(ctx context.Context, ownerID string, defaultLimit int64) (int64, error)
	// ApplyIncrease atomically adds delta to the limit, starting from
	// defaultLimit when no row exists, and returns the new limit.
	ApplyIncrease(ctx context.Context, ownerID string, delta, defaultLimit int64) (int64, error)
}
