// Package services contains server-side business logic: account
// registration and the three two-step sign-in flows, wallet custody
// operations, and ledger reconciliation against the chain.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/wallet"
)

// SecretCipher seals private keys at rest.
type SecretCipher interface {
	Seal(plaintext string) (string, error)
	Open(record string) (string, error)
}

// WalletFactory creates keypairs and re-derives them from a mnemonic.
type WalletFactory interface {
	Generate() (*wallet.Generated, error)
	Derive(mnemonic string) (*wallet.Keypair, error)
}

// withUpstreamTimeout bounds a call to an external collaborator.
func withUpstreamTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
