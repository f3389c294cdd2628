package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/walletkeeper/internal/dbx"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/linkedwallets"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Ledger(db dbx.DBTX) ledger.Repository
	LinkedWallets(db dbx.DBTX) linkedwallets.Repository
}
