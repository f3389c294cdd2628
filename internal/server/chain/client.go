// Package chain talks to the Ethereum network: balances and broadcasts over
// JSON-RPC, transfer history through an Etherscan-compatible explorer.
package chain

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// Transfer is one native-currency transaction as reported by the chain.
type Transfer struct {
	Hash      string
	From      string
	To        string
	Value     decimal.Decimal // ether
	Failed    bool
	Timestamp time.Time
}

// Client is what the services need from the chain.
type Client interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	History(ctx context.Context, address string) ([]Transfer, error)
	SendTransfer(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (string, error)
}

// RPC is the subset of *ethclient.Client used by Gateway.
type RPC interface {
	BalanceAt(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// HistorySource lists an address's transfers, newest first.
type HistorySource interface {
	Transactions(ctx context.Context, address string) ([]Transfer, error)
}
