package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
)

// QuotaService is the quota ledger. "Used" is always derived from live
// objects; only the limit is stored.
type QuotaService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	defaultLimit int64
	logger       logging.Logger
}

func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager, defaultLimit int64, logger logging.Logger) *QuotaService {
	return &QuotaService{
		db:           db,
		repomanager:  m,
		defaultLimit: defaultLimit,
		logger:       logger.With("module", "quota"),
	}
}

func (s *QuotaService) Used(ctx context.Context, ownerID string) (int64, error) {
	return s.repomanager.Objects(s.db).SumSizeByOwner(ctx, ownerID)
}

// Limit falls back to the configured default when the owner has no row.
func (s *QuotaService) Limit(ctx context.Context, ownerID string) (int64, error) {
	limit, err := s.repomanager.Quotas(s.db).GetLimit(ctx, ownerID)
	if errors.Is(err, common.ErrorNotFound) {
		return s.defaultLimit, nil
	}
	return limit, err
}

func (s *QuotaService) Account(ctx context.Context, ownerID string) (*models.QuotaAccount, error) {
	limit, err := s.Limit(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	used, err := s.Used(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaAccount{OwnerID: ownerID, LimitBytes: limit, UsedBytes: used}, nil
}

// ApplyIncrease raises the owner's limit by delta in a single atomic
// statement and returns the new limit.
func (s *QuotaService) ApplyIncrease(ctx context.Context, ownerID string, delta int64) (int64, error) {
	return s.applyIncrease(ctx, s.db, ownerID, delta)
}

func (s *QuotaService) applyIncrease(ctx context.Context, db dbx.DBTX, ownerID string, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("quota increase must be positive: %w", common.ErrorValidation)
	}
	limit, err := s.repomanager.Quotas(db).ApplyIncrease(ctx, ownerID, delta, s.defaultLimit)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "quota raised", "owner_id", ownerID, "delta", delta, "limit_bytes", limit)
	return limit, nil
}

// Reserve is an advisory check outside any transaction, used before a
// transfer of known size starts. It fails with common.ErrQuotaExceeded when
// used+additional would pass the limit. ObjectService.Create still enforces
// the limit under the row lock.
func (s *QuotaService) Reserve(ctx context.Context, ownerID string, additional int64) error {
	acct, err := s.Account(ctx, ownerID)
	if err != nil {
		return err
	}
	return checkFits(acct, additional)
}

// reserve is the enforcing form of Reserve. It locks the owner's quota row
// inside tx so concurrent creations for the same owner serialize.
func (s *QuotaService) reserve(ctx context.Context, tx dbx.DBTX, ownerID string, additional int64) error {
	limit, err := s.repomanager.Quotas(tx).Ensure(ctx, ownerID, s.defaultLimit)
	if err != nil {
		return err
	}
	used, err := s.repomanager.Objects(tx).SumSizeByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	return checkFits(&models.QuotaAccount{OwnerID: ownerID, LimitBytes: limit, UsedBytes: used}, additional)
}

func (s *QuotaService) provision(ctx context.Context, tx dbx.DBTX, ownerID string) (*models.QuotaAccount, error) {
	limit, err := s.repomanager.Quotas(tx).Ensure(ctx, ownerID, s.defaultLimit)
	if err != nil {
		return nil, err
	}
	return &models.QuotaAccount{OwnerID: ownerID, LimitBytes: limit}, nil
}

func checkFits(acct *models.QuotaAccount, additional int64) error {
	if acct.UsedBytes+additional > acct.LimitBytes {
		return fmt.Errorf("%w: used %d + %d > limit %d", common.ErrQuotaExceeded, acct.UsedBytes, additional, acct.LimitBytes)
	}
	return nil
}
