package ledger

import (
	"context"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
	InsertIfAbsent(ctx context.Context, entry *models.LedgerEntry) (bool, error)
	GetStatusByHash(ctx context.Context, txHash string) (models.Status, error)
	AdvancePending(ctx context.Context, txHash string, status models.Status) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, direction models.Direction) ([]*models.LedgerEntry, error)
}
