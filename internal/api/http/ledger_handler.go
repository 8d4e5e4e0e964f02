package http

import (
	"net/http"
	"strconv"
)

func (s *Server) handleGetBrokerBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.GetBrokerBalance(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

func (s *Server) handleWithdrawBrokerBalance(w http.ResponseWriter, r *http.Request) {
	paid, err := s.ledger.WithdrawBrokerBalance(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawResponse{PaidCents: paid})
}

func (s *Server) handleGetAffiliateBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.GetAffiliateBalance(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

func (s *Server) handleWithdrawAffiliateBalance(w http.ResponseWriter, r *http.Request) {
	paid, err := s.ledger.WithdrawAffiliateBalance(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawResponse{PaidCents: paid})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var accountID, positionID *int64
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondBadRequest(w, "invalid account_id")
			return
		}
		accountID = &id
	}
	if v := q.Get("position_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondBadRequest(w, "invalid position_id")
			return
		}
		positionID = &id
	}

	limit := int32(50)
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			respondBadRequest(w, "invalid limit")
			return
		}
		limit = int32(n)
	}
	offset := int32(0)
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			respondBadRequest(w, "invalid offset")
			return
		}
		offset = int32(n)
	}

	entries, err := s.ledger.ListEntries(r.Context(), accountID, positionID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
