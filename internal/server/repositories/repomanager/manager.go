package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/links"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/payments"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/quotas"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or a *sql.Tx, so
// services can run several of them inside one dbx.WithTx call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Objects(db dbx.DBTX) objects.Repository
	Links(db dbx.DBTX) links.Repository
	Quotas(db dbx.DBTX) quotas.Repository
	Payments(db dbx.DBTX) payments.Repository
}
