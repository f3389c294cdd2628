// Package cryptox holds the server-side secret handling primitives: the
// master-key cipher that protects custodial private keys at rest and the
// one-way password hash.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/walletkeeper/internal/common"
)

// MasterKeySize is the required length of the master key (AES-256).
const MasterKeySize = 32

const recordSeparator = ":"

// SecretCipher seals and opens secrets with a server-wide master key using
// AES-256-GCM. A sealed record has the form hex(nonce) + ":" + hex(ciphertext),
// so Open needs nothing besides the record itself.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher builds a cipher from a hex-encoded 32-byte master key.
// A missing or malformed key is a configuration error and must stop startup.
func NewSecretCipher(hexKey string) (*SecretCipher, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("master key is not configured")
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	defer common.WipeByteArray(key)

	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretCipher{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (c *SecretCipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(nonce) + recordSeparator + hex.EncodeToString(ciphertext), nil
}

// Open decrypts a record produced by Seal. Any malformed record or failed
// authentication yields common.ErrIntegrity; partial plaintext is never returned.
func (c *SecretCipher) Open(record string) (string, error) {
	noncePart, ctPart, ok := strings.Cut(record, recordSeparator)
	if !ok {
		return "", fmt.Errorf("%w: missing nonce separator", common.ErrIntegrity)
	}

	nonce, err := hex.DecodeString(noncePart)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce", common.ErrIntegrity)
	}

	ciphertext, err := hex.DecodeString(ctPart)
	if err != nil || len(ciphertext) < c.aead.Overhead() {
		return "", fmt.Errorf("%w: bad ciphertext", common.ErrIntegrity)
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}

	return string(plaintext), nil
}

// GenerateMasterKey returns a fresh hex-encoded master key.
func GenerateMasterKey() string {
	return hex.EncodeToString(common.GenerateRandByteArray(MasterKeySize))
}
