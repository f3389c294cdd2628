package models

import "time"

// LinkedWallet is an external address a user watches. No key material is
// held for it.
type LinkedWallet struct {
	ID         string
	OwnerID    string
	WalletType string
	Chain      string
	Address    string
	LinkedAt   time.Time
}
