// Package objects persists StoredObject metadata. Content bytes live in the
// blob backend under each object's storage key.
package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

// PostgresRepository implements object storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var orderClauses = map[string]string{
	SortDate: "created_at DESC",
	SortName: "name ASC",
	SortSize: "size DESC",
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const objectColumns = `id, owner_id, storage_key, name, size, created_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*models.StoredObject, error) {
	var (
		item  models.StoredObject
		owner sql.NullString
	)
	if err := row.Scan(&item.ID, &owner, &item.StorageKey, &item.Name, &item.Size, &item.CreatedAt, &item.ExpiresAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		item.OwnerID = &owner.String
	}
	return &item, nil
}

// Create inserts obj. A duplicate id or storage key yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, obj *models.StoredObject) error {
	query := `
		INSERT INTO stored_objects (id, owner_id, storage_key, name, size, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var owner sql.NullString
	if obj.OwnerID != nil {
		owner = sql.NullString{String: *obj.OwnerID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		obj.ID, owner, obj.StorageKey, obj.Name, obj.Size, obj.CreatedAt, obj.ExpiresAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StoredObject, error) {
	query := `SELECT ` + objectColumns + ` FROM stored_objects WHERE id = $1`

	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return obj, nil
}

// ListByOwner returns ownerID's objects ordered per filter.Sort.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, filter ListFilter) ([]*models.StoredObject, error) {
	order, ok := orderClauses[filter.Sort]
	if !ok {
		order = orderClauses[SortDate]
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + objectColumns + ` FROM stored_objects WHERE owner_id = $1`)
	args := []any{ownerID}
	if filter.Search != "" {
		sb.WriteString(` AND name ILIKE $2 ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(filter.Search)+"%")
	}
	sb.WriteString(` ORDER BY ` + order)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select objects: %w", err)
	}
	defer rows.Close()

	var result []*models.StoredObject
	for rows.Next() {
		item, err := scanObject(rows)
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

// Delete removes the object row; links referencing it cascade.
// Exactly one row must be affected.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stored_objects WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidText(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}

func (r *PostgresRepository) SumSizeByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM stored_objects WHERE owner_id = $1`

	var used int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&used); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}
