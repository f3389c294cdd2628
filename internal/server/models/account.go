// Package models defines server-side data models persisted in the database.
package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a registered user together with the custody of their wallet.
//
// WalletAddress and EncryptedPrivateKey are set together, once. Mnemonic is
// only populated for wallets generated at registration.
type Account struct {
	ID                  string
	Email               string
	Handle              *string
	FullName            string
	PasswordHash        string
	WalletAddress       *string
	EncryptedPrivateKey *string
	Mnemonic            *string
	Role                string
	Challenge           Challenge
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasCustody reports whether a keypair is already held for the account.
func (a *Account) HasCustody() bool {
	return a.WalletAddress != nil && a.EncryptedPrivateKey != nil
}

// Address returns the wallet address or "" when none is held.
func (a *Account) Address() string {
	if a.WalletAddress == nil {
		return ""
	}
	return *a.WalletAddress
}
