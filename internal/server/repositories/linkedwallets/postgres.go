// Package linkedwallets persists watch-only addresses users attach to their
// account.
package linkedwallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/dbx"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, w *models.LinkedWallet) (*models.LinkedWallet, error) {
	query :=
		`INSERT INTO linked_wallets (owner_id, wallet_type, chain, address)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, linked_at
		 `

	err := r.db.QueryRowContext(ctx, query, w.OwnerID, w.WalletType, w.Chain, w.Address).
		Scan(&w.ID, &w.LinkedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

// GetByIDForOwner returns common.ErrorNotFound both for unknown ids and for
// wallets linked by someone else.
func (r *PostgresRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.LinkedWallet, error) {
	query :=
		`SELECT id, owner_id, wallet_type, chain, address, linked_at
		 FROM linked_wallets
		 WHERE id = $1 AND owner_id = $2
		 `

	w := &models.LinkedWallet{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&w.ID, &w.OwnerID, &w.WalletType, &w.Chain, &w.Address, &w.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return w, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.LinkedWallet, error) {
	query :=
		`SELECT id, owner_id, wallet_type, chain, address, linked_at
		 FROM linked_wallets
		 WHERE owner_id = $1
		 ORDER BY linked_at
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.LinkedWallet, 0)
	for rows.Next() {
		w := &models.LinkedWallet{}
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.WalletType, &w.Chain, &w.Address, &w.LinkedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
