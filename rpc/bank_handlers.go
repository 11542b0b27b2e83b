package rpc

import (
	"net/http"
)

const (
	codeBankInvalidParams = -32050
	codeBankError         = -32051
)

type balanceJSON struct {
	Address        string `json:"address"`
	Balance        string `json:"balance"`
	Nonce          uint64 `json:"nonce"`
	ReceiverActive bool   `json:"receiverActive"`
}

func (s *Server) handleBankGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.state.GetAccount(addr[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeBankError, "query_failed", err.Error())
		return
	}
	writeResult(w, req.ID, balanceJSON{
		Address:        formatAddress(addr),
		Balance:        account.Balance.String(),
		Nonce:          account.Nonce,
		ReceiverActive: !account.ReceiverPaused,
	})
}

func (s *Server) handleBankPauseReceiver(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	err = s.assets.PauseReceiver(addr)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeBankError, "pause_failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": true})
}

func (s *Server) handleBankResumeReceiver(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBankInvalidParams, "invalid_params", err.Error())
		return
	}
	s.mu.Lock()
	err = s.assets.ResumeReceiver(addr)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusConflict, req.ID, codeBankError, "resume_failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"resumed": true})
}
