package links

import (
	"context"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.AccessLink) error
	GetByToken(ctx context.Context, token string) (*models.AccessLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.AccessLink, error)
	Deactivate(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
