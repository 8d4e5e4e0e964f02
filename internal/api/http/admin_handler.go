package http

import (
	"net/http"
)

func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	rates, err := s.admin.GetFeeRates(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rates)
}

func (s *Server) handleSetProtocolFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permille int64 `json:"permille"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.admin.SetProtocolFee(r.Context(), callerID(r), req.Permille); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetBrokerFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permille int64 `json:"permille"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.admin.SetBrokerFee(r.Context(), callerID(r), req.Permille); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	balance, err := s.admin.GetTreasuryBalance(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

func (s *Server) handleWithdrawTreasury(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayeeAccountID int64 `json:"payee_account_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PayeeAccountID <= 0 {
		respondBadRequest(w, "payee_account_id is required")
		return
	}
	paid, err := s.admin.WithdrawTreasury(r.Context(), callerID(r), req.PayeeAccountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawResponse{PaidCents: paid})
}
