package httpapi

import (
	"net/http"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.auth.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Token: res.Token, Address: res.Address, Mnemonic: res.Mnemonic})
}

func (s *Server) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.BeginLogin(r.Context(), req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, statusResponse{Status: "code_sent"})
}

func (s *Server) handleCompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.auth.CompleteLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, Address: sess.Address})
}

func (s *Server) handleBeginReset(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.BeginReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, statusResponse{Status: "code_sent"})
}

func (s *Server) handleCompleteReset(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.CompleteReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "password_updated"})
}

func (s *Server) handleBeginMnemonicLogin(w http.ResponseWriter, r *http.Request) {
	var req mnemonicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.auth.BeginMnemonicLogin(r.Context(), req.Mnemonic); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, statusResponse{Status: "code_sent"})
}

func (s *Server) handleCompleteMnemonicLogin(w http.ResponseWriter, r *http.Request) {
	var req mnemonicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.auth.CompleteMnemonicLogin(r.Context(), req.Mnemonic, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, Address: sess.Address, PrivateKey: sess.PrivateKey})
}
