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
	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
	"github.com/dmitrijs2005/walletkeeper/internal/server/repositories/repomanager"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MockChain tags ledger entries created by simulated purchases.
	MockChain = "MockChain"
	// TokensPerUSD is the fixed rate of simulated purchases.
	TokensPerUSD = 10
)

type WalletBalance struct {
	WalletID string
	Chain    string
	Address  string
	Balance  decimal.Decimal
}

type SendResult struct {
	TxHash string
	Entry  *models.LedgerEntry
}

// WalletService covers custody operations on the caller's own wallet and
// watch-only linked wallets.
type WalletService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	cipher          SecretCipher
	wallets         WalletFactory
	chain           chain.Client
	logger          logging.Logger
	chainName       string
	upstreamTimeout time.Duration
}

func NewWalletService(db *sql.DB, m repomanager.RepositoryManager, cipher SecretCipher, wallets WalletFactory,
	chainClient chain.Client, cfg *config.Config, logger logging.Logger) *WalletService {
	return &WalletService{
		db:              db,
		repomanager:     m,
		cipher:          cipher,
		wallets:         wallets,
		chain:           chainClient,
		logger:          logger.With("module", "wallets"),
		chainName:       cfg.ChainName,
		upstreamTimeout: cfg.UpstreamTimeout,
	}
}

// ImportWallet attaches the wallet of mnemonic to an account without one.
// The phrase itself is not stored.
func (s *WalletService) ImportWallet(ctx context.Context, accountID, mnemonic string) (string, error) {
	kp, err := s.wallets.Derive(mnemonic)
	if err != nil {
		return "", fmt.Errorf("%w: invalid mnemonic", common.ErrValidation)
	}

	repo := s.repomanager.Accounts(s.db)

	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("error loading account: %w", err)
	}
	if account.HasCustody() {
		return "", fmt.Errorf("%w: wallet already exists", common.ErrConflict)
	}

	sealed, err := s.cipher.Seal(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("error sealing private key: %w", err)
	}

	if err := repo.SetCustody(ctx, accountID, kp.Address, sealed); err != nil {
		return "", fmt.Errorf("error storing wallet: %w", err)
	}

	s.logger.Info(ctx, "wallet imported", "account_id", accountID, "address", kp.Address)
	return kp.Address, nil
}

// LinkWallet records a non-custodial address for accountID. Addresses held
// in custody by any account, the caller's own included, are refused.
func (s *WalletService) LinkWallet(ctx context.Context, accountID, walletType, address string) (*models.LinkedWallet, error) {
	if !ethcommon.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address", common.ErrValidation)
	}
	address = ethcommon.HexToAddress(address).Hex()

	_, err := s.repomanager.Accounts(s.db).GetByAddress(ctx, address)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: address is a custodial wallet", common.ErrConflict)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error checking address: %w", err)
	}
	walletType = strings.TrimSpace(walletType)
	if walletType == "" {
		walletType = "external"
	}

	w, err := s.repomanager.LinkedWallets(s.db).Create(ctx, &models.LinkedWallet{
		OwnerID:    accountID,
		WalletType: walletType,
		Chain:      s.chainName,
		Address:    address,
	})
	if err != nil {
		return nil, fmt.Errorf("error linking wallet: %w", err)
	}
	return w, nil
}

func (s *WalletService) ListLinked(ctx context.Context, accountID string) ([]*models.LinkedWallet, error) {
	ws, err := s.repomanager.LinkedWallets(s.db).ListByOwner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error listing wallets: %w", err)
	}
	return ws, nil
}

// Balance reports the on-chain balance of a wallet. walletID names a
// linked wallet; empty or equal to accountID selects the custodial one.
func (s *WalletService) Balance(ctx context.Context, accountID, walletID string) (*WalletBalance, error) {
	w, err := resolveWallet(ctx, s.db, s.repomanager, accountID, walletID)
	if err != nil {
		return nil, err
	}
	if w.Chain == "" {
		w.Chain = s.chainName
	}

	cctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	balance, err := s.chain.Balance(cctx, w.Address)
	if err != nil {
		return nil, fmt.Errorf("error fetching balance: %w", err)
	}

	return &WalletBalance{WalletID: w.ID, Chain: w.Chain, Address: w.Address, Balance: balance}, nil
}

// Send signs a transfer from the account's custodial wallet and records it
// as pending. A ledger write failure after broadcast is logged only; the
// next reconciliation picks the transfer up from chain history.
func (s *WalletService) Send(ctx context.Context, accountID, to, amount string) (*SendResult, error) {
	if !ethcommon.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: invalid recipient address", common.ErrValidation)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !value.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", common.ErrValidation)
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading account: %w", err)
	}
	if !account.HasCustody() {
		return nil, fmt.Errorf("%w: no wallet", common.ErrorNotFound)
	}

	privateKey, err := s.cipher.Open(*account.EncryptedPrivateKey)
	if err != nil {
		s.logger.Error(ctx, "stored key cannot be opened", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	toAddr := ethcommon.HexToAddress(to).Hex()

	cctx, cancel := withUpstreamTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	hash, err := s.chain.SendTransfer(cctx, privateKey, toAddr, value)
	if err != nil {
		if errors.Is(err, chain.ErrInvalidKey) {
			s.logger.Error(ctx, "stored key is not a valid secp256k1 key", "account_id", accountID)
			return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		return nil, fmt.Errorf("error sending transfer: %w", err)
	}

	entry := &models.LedgerEntry{
		OwnerID:   accountID,
		From:      account.Address(),
		To:        toAddr,
		TxHash:    hash,
		Direction: models.DirectionSend,
		Status:    models.StatusPending,
		Amount:    value,
		Chain:     s.chainName,
	}
	if saved, err := s.repomanager.Ledger(s.db).Create(ctx, entry); err != nil {
		s.logger.Error(ctx, "broadcast transfer not recorded", "account_id", accountID, "tx_hash", hash, "error", err)
	} else {
		entry = saved
	}

	return &SendResult{TxHash: hash, Entry: entry}, nil
}

// SimulateBuy records a mocked token purchase worth usd dollars.
func (s *WalletService) SimulateBuy(ctx context.Context, accountID, usd string) (*models.LedgerEntry, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(usd))
	if err != nil || !value.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", common.ErrValidation)
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading account: %w", err)
	}

	to := account.Address()
	if to == "" {
		to = "user"
	}

	entry, err := s.repomanager.Ledger(s.db).Create(ctx, &models.LedgerEntry{
		OwnerID:   accountID,
		From:      "system",
		To:        to,
		TxHash:    "0xmocktx_" + uuid.NewString(),
		Direction: models.DirectionBuy,
		Status:    models.StatusMocked,
		Amount:    value.Mul(decimal.NewFromInt(TokensPerUSD)),
		Chain:     MockChain,
	})
	if err != nil {
		return nil, fmt.Errorf("error recording purchase: %w", err)
	}
	return entry, nil
}

// Transactions lists every ledger entry of the account, newest first.
func (s *WalletService) Transactions(ctx context.Context, accountID string) ([]*models.LedgerEntry, error) {
	return s.list(ctx, accountID, "")
}

// Received lists incoming transfers, newest first.
func (s *WalletService) Received(ctx context.Context, accountID string) ([]*models.LedgerEntry, error) {
	return s.list(ctx, accountID, models.DirectionReceive)
}

func (s *WalletService) ReceiveAddress(ctx context.Context, accountID string) (string, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("error loading account: %w", err)
	}
	if account.WalletAddress == nil {
		return "", fmt.Errorf("%w: no wallet", common.ErrorNotFound)
	}
	return *account.WalletAddress, nil
}

func (s *WalletService) list(ctx context.Context, accountID string, d models.Direction) ([]*models.LedgerEntry, error) {
	entries, err := s.repomanager.Ledger(s.db).ListByOwner(ctx, accountID, d)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return entries, nil
}

// resolveWallet picks the wallet a request refers to. Malformed ids and
// wallets of other owners are both reported as not found.
func resolveWallet(ctx context.Context, db dbx.DBTX, m repomanager.RepositoryManager, accountID, walletRef string) (*models.LinkedWallet, error) {
	if walletRef == "" || walletRef == accountID {
		account, err := m.Accounts(db).GetByID(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("error loading account: %w", err)
		}
		if account.WalletAddress == nil {
			return nil, fmt.Errorf("%w: no wallet", common.ErrorNotFound)
		}
		return &models.LinkedWallet{ID: account.ID, OwnerID: account.ID, WalletType: "custodial", Address: *account.WalletAddress}, nil
	}

	if _, err := uuid.Parse(walletRef); err != nil {
		return nil, fmt.Errorf("%w: wallet %q", common.ErrorNotFound, walletRef)
	}
	w, err := m.LinkedWallets(db).GetByIDForOwner(ctx, walletRef, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading wallet: %w", err)
	}
	return w, nil
}
