package payments

import (
	"context"

	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
	// Transition moves a PENDING transaction to the given terminal status.
	// It reports false when the transaction was no longer pending.
	Transition(ctx context.Context, orderID, paymentID string, to models.PaymentStatus) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error)
}
