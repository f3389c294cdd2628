package httpapi

import (
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/server/models"
)

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Token    string `json:"token"`
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password,omitempty"`
}

type mnemonicRequest struct {
	Mnemonic string `json:"mnemonic"`
	Code     string `json:"code,omitempty"`
}

type sessionResponse struct {
	Token      string `json:"token"`
	Address    string `json:"address"`
	PrivateKey string `json:"private_key,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type linkRequest struct {
	WalletType string `json:"wallet_type"`
	Address    string `json:"address"`
}

type sendRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type buyRequest struct {
	USD string `json:"usd"`
}

type walletView struct {
	ID         string    `json:"id"`
	WalletType string    `json:"wallet_type"`
	Chain      string    `json:"chain"`
	Address    string    `json:"address"`
	LinkedAt   time.Time `json:"linked_at"`
}

type myWalletsResponse struct {
	Custodial string       `json:"custodial,omitempty"`
	Linked    []walletView `json:"linked"`
}

type balanceResponse struct {
	WalletID string `json:"wallet_id"`
	Chain    string `json:"chain"`
	Address  string `json:"address"`
	Balance  string `json:"balance"`
}

type syncResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Updated int    `json:"updated"`
}

type entryView struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TxHash    string    `json:"tx_hash"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Chain     string    `json:"chain"`
	CreatedAt time.Time `json:"created_at"`
}

type sendResponse struct {
	TxHash string    `json:"tx_hash"`
	Entry  entryView `json:"entry"`
}

func toWalletView(w *models.LinkedWallet) walletView {
	return walletView{ID: w.ID, WalletType: w.WalletType, Chain: w.Chain, Address: w.Address, LinkedAt: w.LinkedAt}
}

func toEntryView(e *models.LedgerEntry) entryView {
	return entryView{
		ID:        e.ID,
		From:      e.From,
		To:        e.To,
		TxHash:    e.TxHash,
		Direction: string(e.Direction),
		Status:    string(e.Status),
		Amount:    e.Amount.String(),
		Chain:     e.Chain,
		CreatedAt: e.CreatedAt,
	}
}

func toEntryViews(es []*models.LedgerEntry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryView(e))
	}
	return out
}
