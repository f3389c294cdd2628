package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/dbx"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/dmitrijs2005/walletkeeper/internal/server/chain"
	"github.com/dmitrijs2005/walletkeeper/internal/server/config"
	"github.com/dmitrijs2005/walletkeeper/internal/server/locker"
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

type ReconcileResult struct {
	Address string
	Balance decimal.Decimal
	Fetched int
	Saved   int
	Updated int
}

// ReconcileService merges chain history into the ledger. Transfers are
// keyed by hash: unknown ones are inserted, pending ones take the reported
// outcome, anything else is left as is.
type ReconcileService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	chain           chain.Client
	locker          locker.Locker
	logger          logging.Logger
	chainName       string
	upstreamTimeout time.Duration
}

func NewReconcileService(db *sql.DB, m repomanager.RepositoryManager, chainClient chain.Client, l locker.Locker,
	cfg *config.Config, logger logging.Logger) *ReconcileService {
	return &ReconcileService{
		db:              db,
		repomanager:     m,
		chain:           chainClient,
		locker:          l,
		logger:          logger.With("module", "reconcile"),
		chainName:       cfg.ChainName,
		upstreamTimeout: cfg.UpstreamTimeout,
	}
}

// Reconcile syncs one wallet. walletRef names a linked wallet of the
// account; empty or equal to accountID selects the custodial wallet.
func (s *ReconcileService) Reconcile(ctx context.Context, accountID, walletRef string) (*ReconcileResult, error) {
	w, err := resolveWallet(ctx, s.db, s.repomanager, accountID, walletRef)
	if err != nil {
		return nil, err
	}
	address := w.Address

	unlock, err := s.locker.Lock(ctx, strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("error acquiring reconcile lock: %w", err)
	}
	defer unlock()

	cctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	balance, err := s.chain.Balance(cctx, address)
	if err != nil {
		return nil, fmt.Errorf("error fetching balance: %w", err)
	}
	transfers, err := s.chain.History(cctx, address)
	if err != nil {
		return nil, fmt.Errorf("error fetching history: %w", err)
	}

	result := &ReconcileResult{Address: address, Balance: balance, Fetched: len(transfers)}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ledger := s.repomanager.Ledger(tx)

		for _, t := range transfers {
			reported := models.StatusConfirmed
			if t.Failed {
				reported = models.StatusFailed
			}

			status, err := ledger.GetStatusByHash(ctx, t.Hash)
			switch {
			case errors.Is(err, common.ErrorNotFound):
				inserted, err := ledger.InsertIfAbsent(ctx, s.entryFor(accountID, address, t, reported))
				if err != nil {
					return err
				}
				if inserted {
					result.Saved++
				}
			case err != nil:
				return err
			case status == models.StatusPending:
				advanced, err := ledger.AdvancePending(ctx, t.Hash, reported)
				if err != nil {
					return err
				}
				if advanced {
					result.Updated++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error saving transactions: %w", err)
	}

	s.logger.Info(ctx, "wallet reconciled", "account_id", accountID, "address", address,
		"fetched", result.Fetched, "saved", result.Saved, "updated", result.Updated)

	return result, nil
}

// ReconcileAll syncs the custodial wallet of every account holding one.
// A failing account is logged and skipped.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (int, error) {
	list, err := s.repomanager.Accounts(s.db).ListWithCustody(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing accounts: %w", err)
	}

	done := 0
	for _, a := range list {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Reconcile(ctx, a.ID, ""); err != nil {
			s.logger.Warn(ctx, "reconcile failed", "account_id", a.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *ReconcileService) entryFor(ownerID, address string, t chain.Transfer, status models.Status) *models.LedgerEntry {
	direction := models.DirectionReceive
	if strings.EqualFold(t.From, address) {
		direction = models.DirectionSend
	}

	return &models.LedgerEntry{
		OwnerID:   ownerID,
		From:      t.From,
		To:        t.To,
		TxHash:    t.Hash,
		Direction: direction,
		Status:    status,
		Amount:    t.Value,
		Chain:     s.chainName,
		CreatedAt: t.Timestamp,
	}
}
