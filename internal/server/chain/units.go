package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// WeiToEther converts an integer wei amount to ether.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -etherDecimals)
}

// EtherToWei converts ether to wei, refusing amounts finer than one wei.
func EtherToWei(ether decimal.Decimal) (*big.Int, error) {
	wei := ether.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", ether, etherDecimals)
	}
	return wei.BigInt(), nil
}

// ParseWei reads a base-10 wei string as reported by explorers.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}
