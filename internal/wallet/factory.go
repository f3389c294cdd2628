// Package wallet derives Ethereum keypairs from BIP-39 mnemonics along the
// standard BIP-44 account path.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic is returned when a phrase fails word list or checksum
// validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// DefaultPath is m/44'/60'/0'/0/0, the first external Ethereum account.
var DefaultPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
	0,
}

// Keypair is a derived account. PrivateKey is 0x-prefixed hex, Address is
// EIP-55 checksummed.
type Keypair struct {
	Address    string
	PrivateKey string
}

// Generated is a freshly created wallet together with its recovery phrase.
type Generated struct {
	Keypair
	Mnemonic string
}

// Factory creates and re-derives wallets.
type Factory struct {
	entropyBits int
	path        []uint32
}

// NewFactory returns a Factory producing 12-word mnemonics on DefaultPath.
func NewFactory() *Factory {
	return &Factory{entropyBits: 128, path: DefaultPath}
}

// Generate creates a new random mnemonic and derives its first account.
func (f *Factory) Generate() (*Generated, error) {
	entropy, err := bip39.NewEntropy(f.entropyBits)
	if err != nil {
		return nil, fmt.Errorf("error generating entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("error generating mnemonic: %w", err)
	}

	kp, err := f.derive(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("error deriving keypair: %w", err)
	}

	return &Generated{Keypair: *kp, Mnemonic: mnemonic}, nil
}

// Derive re-derives the account for a caller-supplied mnemonic. The result
// depends only on the words, so the same phrase always maps to the same
// address and key.
func (f *Factory) Derive(mnemonic string) (*Keypair, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if mnemonic == "" || !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return f.derive(mnemonic)
}

func (f *Factory) derive(mnemonic string) (*Keypair, error) {
	seed := bip39.NewSeed(mnemonic, "")

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	for _, idx := range f.path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}

	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, err
	}

	return keypairFromECDSA(ecdsaKey), nil
}

func keypairFromECDSA(k *ecdsa.PrivateKey) *Keypair {
	return &Keypair{
		Address:    crypto.PubkeyToAddress(k.PublicKey).Hex(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(k)),
	}
}

// NormalizeMnemonic lower-cases the phrase and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}
