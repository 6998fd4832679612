package client

import (
	"context"

	"github.com/dmitrijs2005/linkvault/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Register(ctx context.Context, username, password string) (int64, error)
	Login(ctx context.Context, username, password string) (string, string, error)
	SetTokens(access, refresh string)
	OnTokensRefreshed(fn func(access, refresh string))

	Upload(ctx context.Context, path string) (*models.Object, error)
	ListObjects(ctx context.Context, search, sort string) ([]models.Object, error)
	DeleteObject(ctx context.Context, id string) error

	IssueLink(ctx context.Context, objectID, duration, accessCode string) (*models.Link, error)
	RevokeLink(ctx context.Context, token string) error
	ListLinks(ctx context.Context) ([]models.Link, error)
	Ingest(ctx context.Context, url string) (*models.Object, string, error)

	GetQuota(ctx context.Context) (*models.Quota, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	OpenOrder(ctx context.Context, plan string) (*models.Payment, error)
	SettleOrder(ctx context.Context, orderID string) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
}
