// Package payments persists quota purchase transactions. Rows are never
// deleted; they form the audit trail of purchases.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a PENDING transaction and fills the timestamps.
func (r *PostgresRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (order_id, owner_id, amount, currency, storage_increase, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	txn.Status = models.PaymentPending
	err := r.db.QueryRowContext(ctx, query,
		txn.OrderID, txn.OwnerID, txn.Amount, txn.Currency, txn.StorageIncrease, string(txn.Status)).
		Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const paymentColumns = `order_id, payment_id, owner_id, amount, currency, storage_increase, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.PaymentTransaction, error) {
	var (
		item   models.PaymentTransaction
		status string
	)
	if err := row.Scan(&item.OrderID, &item.PaymentID, &item.OwnerID, &item.Amount, &item.Currency,
		&item.StorageIncrease, &status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Status = models.PaymentStatus(status)
	return &item, nil
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE order_id = $1`

	txn, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return txn, nil
}

// Transition is a conditional update on status = 'PENDING', so concurrent
// callbacks for the same order cannot both win.
func (r *PostgresRepository) Transition(ctx context.Context, orderID, paymentID string, to models.PaymentStatus) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("invalid target status %q: %w", to, common.ErrorValidation)
	}

	query := `
		UPDATE payment_transactions
		SET status = $3, payment_id = $2, updated_at = now()
		WHERE order_id = $1 AND status = 'PENDING'
	`
	res, err := r.db.ExecContext(ctx, query, orderID, paymentID, string(to))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select payments: %w", err)
	}
	defer rows.Close()

	var result []*models.PaymentTransaction
	for rows.Next() {
		item, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
