package linkedwallets

import (
	"context"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, w *models.LinkedWallet) (*models.LinkedWallet, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.LinkedWallet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.LinkedWallet, error)
}
