package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/gateway"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
	units "github.com/docker/go-units"
)

// Plan is a purchasable quota increase. Amount is in minor currency units.
type Plan struct {
	Code            string
	StorageIncrease int64
	Amount          int64
}

// Plans is the quota catalogue.
var Plans = map[string]Plan{
	"5gb":  {Code: "5gb", StorageIncrease: 5 * units.GiB, Amount: 10000},
	"10gb": {Code: "10gb", StorageIncrease: 10 * units.GiB, Amount: 18000},
	"50gb": {Code: "50gb", StorageIncrease: 50 * units.GiB, Amount: 80000},
}

// SortedPlans returns the catalogue cheapest first.
func SortedPlans() []Plan {
	out := make([]Plan, 0, len(Plans))
	for _, p := range Plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// Callback is what the gateway reports after a checkout.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Settler is implemented by gateways that can complete a checkout
// themselves, such as gateway.Sandbox.
type Settler interface {
	Settle(orderID string) (paymentID, signature string, err error)
}

// PaymentService is the payment ledger. A transaction leaves PENDING once and
// only a SUCCESS transition raises the owner's quota.
type PaymentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gateway     gateway.Gateway
	quota       *QuotaService
	currency    string
	logger      logging.Logger
	metrics     *metrics.Metrics
}

func NewPaymentService(db *sql.DB, m repomanager.RepositoryManager, gw gateway.Gateway, quota *QuotaService,
	currency string, logger logging.Logger, mx *metrics.Metrics) *PaymentService {
	return &PaymentService{
		db:          db,
		repomanager: m,
		gateway:     gw,
		quota:       quota,
		currency:    currency,
		logger:      logger.With("module", "payments"),
		metrics:     mx,
	}
}

func (s *PaymentService) KeyID() string {
	return s.gateway.KeyID()
}

// OpenOrder asks the gateway for an order and records it as PENDING.
func (s *PaymentService) OpenOrder(ctx context.Context, ownerID string, amount, storageIncrease int64) (*models.PaymentTransaction, error) {
	if amount <= 0 || storageIncrease <= 0 {
		return nil, fmt.Errorf("amount and storage increase must be positive: %w", common.ErrorValidation)
	}

	orderID, err := s.gateway.CreateOrder(ctx, amount, s.currency)
	if err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}

	txn := &models.PaymentTransaction{
		OrderID:         orderID,
		OwnerID:         ownerID,
		Amount:          amount,
		Currency:        s.currency,
		StorageIncrease: storageIncrease,
	}
	if err := s.repomanager.Payments(s.db).Create(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "order opened", "order_id", orderID, "owner_id", ownerID, "amount", amount)
	return txn, nil
}

func (s *PaymentService) OpenPlanOrder(ctx context.Context, ownerID, planCode string) (*models.PaymentTransaction, error) {
	plan, ok := Plans[planCode]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q: %w", planCode, common.ErrorValidation)
	}
	return s.OpenOrder(ctx, ownerID, plan.Amount, plan.StorageIncrease)
}

// Confirm applies a gateway callback. Callbacks for a transaction that is
// already terminal are no-ops. A verified payment moves to SUCCESS and raises
// the quota in the same transaction; if the raise fails the whole step rolls
// back and common.ErrReconciliation is returned.
func (s *PaymentService) Confirm(ctx context.Context, cb Callback) (*models.PaymentTransaction, error) {
	repo := s.repomanager.Payments(s.db)

	txn, err := repo.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if txn.Status.Terminal() {
		s.metrics.PaymentConfirmed("duplicate")
		s.logger.Info(ctx, "duplicate payment callback", "order_id", cb.OrderID, "status", txn.Status)
		return txn, nil
	}

	if !s.gateway.VerifySignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		if _, err := repo.Transition(ctx, cb.OrderID, cb.PaymentID, models.PaymentFailed); err != nil {
			return nil, err
		}
		s.metrics.PaymentConfirmed("signature_invalid")
		s.logger.Warn(ctx, "payment signature rejected", "order_id", cb.OrderID)
		return nil, common.ErrSignatureInvalid
	}

	var applied bool
	err = withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		changed, err := s.repomanager.Payments(tx).Transition(ctx, cb.OrderID, cb.PaymentID, models.PaymentSuccess)
		if err != nil || !changed {
			return err
		}
		if _, err := s.quota.applyIncrease(ctx, tx, txn.OwnerID, txn.StorageIncrease); err != nil {
			s.logger.Error(ctx, "payment verified but quota update failed",
				"reconcile", true,
				"order_id", txn.OrderID,
				"owner_id", txn.OwnerID,
				"storage_increase", txn.StorageIncrease,
				"error", err)
			return fmt.Errorf("%w: order %s: %v", common.ErrReconciliation, txn.OrderID, err)
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrReconciliation) {
			s.metrics.PaymentConfirmed("reconcile")
		}
		return nil, err
	}

	if applied {
		s.metrics.PaymentConfirmed("success")
		s.logger.Info(ctx, "payment confirmed", "order_id", txn.OrderID, "owner_id", txn.OwnerID)
	} else {
		s.metrics.PaymentConfirmed("duplicate")
	}

	return repo.GetByOrderID(ctx, cb.OrderID)
}

// Checkout settles an owner's pending order through a gateway that can do it
// locally. Other gateways report ErrorValidation.
func (s *PaymentService) Checkout(ctx context.Context, ownerID, orderID string) (*models.PaymentTransaction, error) {
	settler, ok := s.gateway.(Settler)
	if !ok {
		return nil, fmt.Errorf("gateway does not support local checkout: %w", common.ErrorValidation)
	}

	txn, err := s.repomanager.Payments(s.db).GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txn.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}

	paymentID, signature, err := settler.Settle(orderID)
	if err != nil {
		return nil, err
	}
	return s.Confirm(ctx, Callback{OrderID: orderID, PaymentID: paymentID, Signature: signature})
}

func (s *PaymentService) History(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error) {
	return s.repomanager.Payments(s.db).ListByOwner(ctx, ownerID)
}
