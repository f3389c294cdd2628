package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req mnemonicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	addr, err := s.wallets.ImportWallet(r.Context(), accountFrom(r.Context()).ID, req.Mnemonic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, addressResponse{Address: addr})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lw, err := s.wallets.LinkWallet(r.Context(), accountFrom(r.Context()).ID, req.WalletType, req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWalletView(lw))
}

func (s *Server) handleMyWallets(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())

	list, err := s.wallets.ListLinked(r.Context(), account.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := myWalletsResponse{Custodial: account.Address(), Linked: make([]walletView, 0, len(list))}
	for _, lw := range list {
		resp.Linked = append(resp.Linked, toWalletView(lw))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.wallets.Balance(r.Context(), accountFrom(r.Context()).ID, chi.URLParam(r, "walletID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		WalletID: b.WalletID, Chain: b.Chain, Address: b.Address, Balance: b.Balance.String(),
	})
}

// handleSync reconciles the wallet in the path, or the custodial wallet
// when none is given.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.reconciler.Reconcile(r.Context(), accountFrom(r.Context()).ID, chi.URLParam(r, "walletID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Address: res.Address,
		Balance: res.Balance.String(),
		Fetched: res.Fetched,
		Saved:   res.Saved,
		Updated: res.Updated,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.wallets.Send(r.Context(), accountFrom(r.Context()).ID, req.To, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, sendResponse{TxHash: res.TxHash, Entry: toEntryView(res.Entry)})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := s.wallets.SimulateBuy(r.Context(), accountFrom(r.Context()).ID, req.USD)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryView(e))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.wallets.Transactions(r.Context(), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryViews(list))
}

func (s *Server) handleReceived(w http.ResponseWriter, r *http.Request) {
	list, err := s.wallets.Received(r.Context(), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryViews(list))
}

func (s *Server) handleReceiveAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := s.wallets.ReceiveAddress(r.Context(), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{Address: addr})
}
