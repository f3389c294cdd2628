package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

// TransferGas is the fixed gas limit of a plain value transfer.
const TransferGas uint64 = 21000

var ErrInvalidKey = errors.New("invalid private key")

// Gateway implements Client. Reads are retried with exponential backoff;
// every call is bounded by the configured timeout and failures are
// reported as common.ErrUpstream.
type Gateway struct {
	rpc     RPC
	history HistorySource
	timeout time.Duration
	backoff func() retry.Backoff
	logger  logging.Logger
}

func NewGateway(rpc RPC, history HistorySource, timeout time.Duration, logger logging.Logger) *Gateway {
	return &Gateway{
		rpc:     rpc,
		history: history,
		timeout: timeout,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		},
		logger: logger.With("module", "chain"),
	}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrUpstream, err)
}

func (g *Gateway) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	attempt := 0
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			g.logger.Debug(ctx, "chain read failed", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return upstream(op, err)
	}
	return nil
}

func (g *Gateway) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !ethcommon.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: bad address", common.ErrValidation)
	}

	var wei *big.Int
	err := g.read(ctx, "balance", func(ctx context.Context) error {
		v, err := g.rpc.BalanceAt(ctx, ethcommon.HexToAddress(address), nil)
		if err != nil {
			return err
		}
		wei = v
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return WeiToEther(wei), nil
}

func (g *Gateway) History(ctx context.Context, address string) ([]Transfer, error) {
	var transfers []Transfer
	err := g.read(ctx, "history", func(ctx context.Context) error {
		v, err := g.history.Transactions(ctx, address)
		if err != nil {
			return err
		}
		transfers = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

// SendTransfer signs a legacy EIP-155 value transfer with the given key and
// broadcasts it. It is not retried: a lost response may still have been
// accepted by the node.
func (g *Gateway) SendTransfer(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", ErrInvalidKey
	}

	wei, err := EtherToWei(amount)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := g.rpc.ChainID(ctx)
	if err != nil {
		return "", upstream("chain id", err)
	}
	nonce, err := g.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return "", upstream("nonce", err)
	}
	gasPrice, err := g.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", upstream("gas price", err)
	}

	toAddr := ethcommon.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    wei,
		Gas:      TransferGas,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := g.rpc.SendTransaction(ctx, signed); err != nil {
		return "", upstream("broadcast", err)
	}

	hash := signed.Hash().Hex()
	g.logger.Info(ctx, "transfer broadcast", "from", from.Hex(), "to", toAddr.Hex(), "tx_hash", hash)

	return hash, nil
}
