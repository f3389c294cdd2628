// Package ledger persists transfer records keyed by their unique
// transaction hash.
package ledger

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

// createdAt passes the entry's own timestamp when it has one. Otherwise the
// row gets the wall clock at insert time, not the transaction start.
func createdAt(e *models.LedgerEntry) sql.NullTime {
	return sql.NullTime{Time: e.CreatedAt, Valid: !e.CreatedAt.IsZero()}
}

// Create inserts entry and fails with common.ErrConflict when its hash is
// already recorded.
func (r *PostgresRepository) Create(ctx context.Context, e *models.LedgerEntry) (*models.LedgerEntry, error) {
	query :=
		`INSERT INTO ledger_entries (owner_id, from_address, to_address, tx_hash, direction, status, amount, chain, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::timestamptz, clock_timestamp()))
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		e.OwnerID, e.From, e.To, e.TxHash, string(e.Direction), string(e.Status), e.Amount, e.Chain, createdAt(e),
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return e, nil
}

// InsertIfAbsent inserts entry unless its hash exists and reports whether a
// row was written.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, e *models.LedgerEntry) (bool, error) {
	query :=
		`INSERT INTO ledger_entries (owner_id, from_address, to_address, tx_hash, direction, status, amount, chain, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::timestamptz, clock_timestamp()))
		 ON CONFLICT (tx_hash) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query,
		e.OwnerID, e.From, e.To, e.TxHash, string(e.Direction), string(e.Status), e.Amount, e.Chain, createdAt(e))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) GetStatusByHash(ctx context.Context, txHash string) (models.Status, error) {
	query := `SELECT status FROM ledger_entries WHERE tx_hash = $1`

	var status string
	if err := r.db.QueryRowContext(ctx, query, txHash).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return models.Status(status), nil
}

// AdvancePending moves a pending entry to status. Entries in any other state
// are left alone.
func (r *PostgresRepository) AdvancePending(ctx context.Context, txHash string, status models.Status) (bool, error) {
	query :=
		`UPDATE ledger_entries SET status = $2
		 WHERE tx_hash = $1 AND status = 'pending'
		 `

	res, err := r.db.ExecContext(ctx, query, txHash, string(status))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// ListByOwner returns the owner's entries newest first. An empty direction
// returns every direction.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, direction models.Direction) ([]*models.LedgerEntry, error) {
	query :=
		`SELECT id, owner_id, from_address, to_address, tx_hash, direction, status, amount, chain, created_at
		 FROM ledger_entries
		 WHERE owner_id = $1 AND ($2 = '' OR direction = $2)
		 ORDER BY created_at DESC, id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID, string(direction))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var (
			e           models.LedgerEntry
			dir, status string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.From, &e.To, &e.TxHash, &dir, &status,
			&e.Amount, &e.Chain, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.Direction = models.Direction(dir)
		e.Status = models.Status(status)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
