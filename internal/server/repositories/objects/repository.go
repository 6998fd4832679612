package objects

import (
	"context"

	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

// Sort orders accepted by ListByOwner.
const (
	SortDate = "date"
	SortName = "name"
	SortSize = "size"
)

// ListFilter narrows ListByOwner. Search is a case-insensitive substring of
// the display name; Sort is one of the Sort* constants (default SortDate).
type ListFilter struct {
	Search string
	Sort   string
}

type Repository interface {
	Create(ctx context.Context, obj *models.StoredObject) error
	GetByID(ctx context.Context, id string) (*models.StoredObject, error)
	ListByOwner(ctx context.Context, ownerID string, filter ListFilter) ([]*models.StoredObject, error)
	Delete(ctx context.Context, id string) error
	// SumSizeByOwner is the "used" figure of the owner's quota.
	SumSizeByOwner(ctx context.Context, ownerID string) (int64, error)
}
