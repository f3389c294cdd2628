package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	mu sync.Mutex

	balance     *big.Int
	balanceErrs []error // consumed one per call
	chainID     *big.Int
	nonce       uint64
	gasPrice    *big.Int
	sendErr     error

	balanceCalls int
	sent         []*types.Transaction
}

func (f *fakeRPC) BalanceAt(ctx context.Context, _ ethcommon.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	if len(f.balanceErrs) > 0 {
		err := f.balanceErrs[0]
		f.balanceErrs = f.balanceErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.balance, nil
}

func (f *fakeRPC) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeRPC) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeRPC) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

type fakeHistory struct {
	transfers []Transfer
	err       error
	calls     int
}

func (f *fakeHistory) Transactions(context.Context, string) ([]Transfer, error) {
	f.calls++
	return f.transfers, f.err
}

func newTestGateway(rpc RPC, h HistorySource) *Gateway {
	g := NewGateway(rpc, h, time.Second, logging.Nop())
	g.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return g
}

const addr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestGateway_Balance_RetriesTransientErrors(t *testing.T) {
	rpc := &fakeRPC{
		balance:     big.NewInt(1_500_000_000_000_000_000),
		balanceErrs: []error{errors.New("timeout"), nil},
	}
	g := newTestGateway(rpc, &fakeHistory{})

	got, err := g.Balance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got.String())
	assert.Equal(t, 2, rpc.balanceCalls)
}

func TestGateway_Balance_GivesUp(t *testing.T) {
	boom := errors.New("node down")
	rpc := &fakeRPC{balanceErrs: []error{boom, boom, boom, boom}}
	g := newTestGateway(rpc, &fakeHistory{})

	_, err := g.Balance(context.Background(), addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, 3, rpc.balanceCalls)
}

func TestGateway_Balance_BadAddress(t *testing.T) {
	g := newTestGateway(&fakeRPC{}, &fakeHistory{})
	_, err := g.Balance(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGateway_History(t *testing.T) {
	h := &fakeHistory{transfers: []Transfer{{Hash: "0x1"}}}
	g := newTestGateway(&fakeRPC{}, h)

	got, err := g.History(context.Background(), addr)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	h.err = errors.New("rate limited")
	_, err = g.History(context.Background(), addr)
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestGateway_SendTransfer_SignsForChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))

	rpc := &fakeRPC{chainID: big.NewInt(11155111), nonce: 7, gasPrice: big.NewInt(2_000_000_000)}
	g := newTestGateway(rpc, &fakeHistory{})

	to := "0x000000000000000000000000000000000000dEaD"
	hash, err := g.SendTransfer(context.Background(), keyHex, to, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	require.Len(t, rpc.sent, 1)

	tx := rpc.sent[0]
	assert.Equal(t, hash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, TransferGas, tx.Gas())
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), tx.Value())
	assert.Equal(t, ethcommon.HexToAddress(to), *tx.To())
	assert.Equal(t, big.NewInt(11155111), tx.ChainId())

	sender, err := types.Sender(types.LatestSignerForChainID(rpc.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)
}

func TestGateway_SendTransfer_Errors(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))
	base := func() *fakeRPC {
		return &fakeRPC{chainID: big.NewInt(1), gasPrice: big.NewInt(1)}
	}

	t.Run("bad key", func(t *testing.T) {
		_, err := newTestGateway(base(), &fakeHistory{}).SendTransfer(context.Background(), "0xzz", addr, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("sub-wei amount", func(t *testing.T) {
		_, err := newTestGateway(base(), &fakeHistory{}).SendTransfer(context.Background(), keyHex, addr, decimal.RequireFromString("1e-19"))
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("broadcast rejected", func(t *testing.T) {
		rpc := base()
		rpc.sendErr = errors.New("insufficient funds")
		_, err := newTestGateway(rpc, &fakeHistory{}).SendTransfer(context.Background(), keyHex, addr, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, common.ErrUpstream)
	})
}
