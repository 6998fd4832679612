// Package links provides PostgreSQL-backed persistence for access links.
package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

// PostgresRepository implements link storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts link and fills its ID. The token column is unique; a clash
// yields common.ErrorAlreadyExists so the caller can regenerate.
func (r *PostgresRepository) Create(ctx context.Context, link *models.AccessLink) error {
	query := `
		INSERT INTO access_links (token, object_id, kind, code_salt, code_hash, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		link.Token, link.ObjectID, string(link.Kind), link.CodeSalt, link.CodeHash,
		link.ExpiresAt, link.Active, link.CreatedAt).Scan(&link.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const linkColumns = `l.id, l.token, l.object_id, l.kind, l.code_salt, l.code_hash, l.expires_at, l.active, l.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.AccessLink, error) {
	var (
		item models.AccessLink
		kind string
	)
	if err := row.Scan(&item.ID, &item.Token, &item.ObjectID, &kind, &item.CodeSalt, &item.CodeHash,
		&item.ExpiresAt, &item.Active, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.Kind = models.LinkKind(kind)
	return &item, nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.AccessLink, error) {
	query := `SELECT ` + linkColumns + ` FROM access_links l WHERE l.token = $1`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// ListByOwner returns links on objects owned by ownerID, latest deadline first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.AccessLink, error) {
	query := `SELECT ` + linkColumns + `
		FROM access_links l
		JOIN stored_objects o ON o.id = l.object_id
		WHERE o.owner_id = $1
		ORDER BY l.expires_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessLink
	for rows.Next() {
		item, err := scanLink(rows)
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

// Deactivate clears the active flag. Already inactive links still count as
// updated; only an unknown token yields common.ErrorNotFound.
func (r *PostgresRepository) Deactivate(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE access_links SET active = FALSE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_links WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
