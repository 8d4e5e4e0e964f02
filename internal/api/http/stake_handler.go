package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"stakelend-backend/internal/domain"
)

func assetRefFromVars(w http.ResponseWriter, r *http.Request) (domain.AssetRef, bool) {
	vars := mux.Vars(r)
	tokenID, err := strconv.ParseInt(vars["tokenID"], 10, 64)
	if err != nil {
		respondBadRequest(w, "invalid token id")
		return domain.AssetRef{}, false
	}
	return domain.AssetRef{Contract: vars["contract"], TokenID: tokenID}, true
}

func positionIDFromVars(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondBadRequest(w, "invalid position id")
		return 0, false
	}
	return id, true
}

type registerAssetRequest struct {
	Contract string `json:"contract"`
	TokenID  int64  `json:"token_id"`
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Contract == "" {
		respondBadRequest(w, "contract is required")
		return
	}
	ref := domain.AssetRef{Contract: req.Contract, TokenID: req.TokenID}
	if err := s.stake.RegisterAsset(r.Context(), ref, callerID(r)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"asset": ref.String()})
}

type approveCustodyRequest struct {
	Approved bool `json:"approved"`
}

func (s *Server) handleApproveCustody(w http.ResponseWriter, r *http.Request) {
	ref, ok := assetRefFromVars(w, r)
	if !ok {
		return
	}
	var req approveCustodyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.ApproveCustody(r.Context(), callerID(r), ref, req.Approved); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"approved": req.Approved})
}

type operatorApprovalRequest struct {
	OperatorAccountID int64 `json:"operator_account_id"`
	Approved          bool  `json:"approved"`
}

func (s *Server) handleSetOperatorApproval(w http.ResponseWriter, r *http.Request) {
	var req operatorApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OperatorAccountID <= 0 {
		respondBadRequest(w, "operator_account_id is required")
		return
	}
	if err := s.stake.SetOperatorApproval(r.Context(), callerID(r), req.OperatorAccountID, req.Approved); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"approved": req.Approved})
}

type conditionRequest struct {
	FeePerDayCents          int64     `json:"fee_per_day_cents"`
	LendLimitDate           time.Time `json:"lend_limit_date"`
	MinimumPeriodDays       int64     `json:"minimum_period_days"`
	AffiliateRewardPermille int64     `json:"affiliate_reward_permille"`
}

func (c conditionRequest) toDomain() domain.Condition {
	return domain.Condition{
		FeePerDayCents:          c.FeePerDayCents,
		LendLimitDate:           c.LendLimitDate,
		MinimumPeriodDays:       c.MinimumPeriodDays,
		AffiliateRewardPermille: c.AffiliateRewardPermille,
	}
}

type stakeRequest struct {
	Contract  string           `json:"contract"`
	TokenID   int64            `json:"token_id"`
	Condition conditionRequest `json:"condition"`
}

type stakeResponse struct {
	Position *domain.Position `json:"position"`
	Receipt  *domain.Receipt  `json:"receipt"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Contract == "" {
		respondBadRequest(w, "contract is required")
		return
	}
	ref := domain.AssetRef{Contract: req.Contract, TokenID: req.TokenID}
	pos, rec, err := s.stake.Stake(r.Context(), callerID(r), ref, req.Condition.toDomain())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, stakeResponse{Position: pos, Receipt: rec})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	pos, err := s.stake.GetPosition(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pos)
}

func (s *Server) handleGetPositionByAsset(w http.ResponseWriter, r *http.Request) {
	ref, ok := assetRefFromVars(w, r)
	if !ok {
		return
	}
	pos, err := s.stake.GetPositionByAsset(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pos)
}

func (s *Server) handleGetCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	pos, err := s.stake.GetPosition(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pos.Condition)
}

func (s *Server) handleSetCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req conditionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.SetCondition(r.Context(), callerID(r), id, req.toDomain()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleChangeFeePerDay(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req struct {
		FeePerDayCents int64 `json:"fee_per_day_cents"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.ChangeFeePerDay(r.Context(), callerID(r), id, req.FeePerDayCents); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleChangeLendLimitDate(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req struct {
		LendLimitDate time.Time `json:"lend_limit_date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.ChangeLendLimitDate(r.Context(), callerID(r), id, req.LendLimitDate); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleChangeMinimumPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req struct {
		MinimumPeriodDays int64 `json:"minimum_period_days"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.ChangeMinimumPeriod(r.Context(), callerID(r), id, req.MinimumPeriodDays); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleChangeAffiliateReward(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req struct {
		AffiliateRewardPermille int64 `json:"affiliate_reward_permille"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.stake.ChangeAffiliateReward(r.Context(), callerID(r), id, req.AffiliateRewardPermille); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

type withdrawResponse struct {
	PaidCents int64 `json:"paid_cents"`
}

func (s *Server) handleWithdrawAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	paid, err := s.stake.WithdrawAsset(r.Context(), callerID(r), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawResponse{PaidCents: paid})
}

func (s *Server) handleWithdrawBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	paid, err := s.stake.WithdrawBalance(r.Context(), callerID(r), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawResponse{PaidCents: paid})
}

func (s *Server) handleGetPositionBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	balance, err := s.ledger.GetPositionBalance(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"balance_cents": balance})
}

func (s *Server) handleListMyPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.stake.ListPositionsByOwner(r.Context(), callerID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

func (s *Server) handleListByContract(w http.ResponseWriter, r *http.Request) {
	positions, err := s.stake.ListPositionsByContract(r.Context(), mux.Vars(r)["contract"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.stake.GetReceipt(r.Context(), mux.Vars(r)["serial"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTransferReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToAccountID int64 `json:"to_account_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ToAccountID <= 0 {
		respondBadRequest(w, "to_account_id is required")
		return
	}
	if err := s.stake.TransferReceipt(r.Context(), callerID(r), mux.Vars(r)["serial"], req.ToAccountID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
