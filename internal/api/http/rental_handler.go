package http

import (
	"net/http"
	"time"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/service"
)

type settlementDTO struct {
	PositionID     int64     `json:"position_id"`
	Asset          string    `json:"asset"`
	LendFeeCents   int64     `json:"lend_fee_cents"`
	OwnerCents     int64     `json:"owner_cents"`
	ProtocolCents  int64     `json:"protocol_cents"`
	BrokerCents    int64     `json:"broker_cents"`
	AffiliateCents int64     `json:"affiliate_cents"`
	Expiry         time.Time `json:"expiry"`
	Extension      bool      `json:"extension"`
}

func settlementResponse(s *domain.RentalSettlement) settlementDTO {
	return settlementDTO{
		PositionID:     s.PositionID,
		Asset:          s.Asset.String(),
		LendFeeCents:   s.LendFeeCents,
		OwnerCents:     s.OwnerCents,
		ProtocolCents:  s.ProtocolCents,
		BrokerCents:    s.BrokerCents,
		AffiliateCents: s.AffiliateCents,
		Expiry:         s.NewExpiry,
		Extension:      s.Extension,
	}
}

type quoteRequest struct {
	Expiry       time.Time `json:"expiry"`
	HasBroker    bool      `json:"has_broker"`
	HasAffiliate bool      `json:"has_affiliate"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	split, err := s.rental.Quote(r.Context(), id, req.Expiry, req.HasBroker, req.HasAffiliate)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, split)
}

type borrowRequest struct {
	Expiry       time.Time `json:"expiry"`
	BrokerID     *int64    `json:"broker_id,omitempty"`
	AffiliateID  *int64    `json:"affiliate_id,omitempty"`
	PaymentCents int64     `json:"payment_cents"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req borrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	settlement, err := s.rental.Borrow(r.Context(), service.BorrowInput{
		RenterID:     callerID(r),
		PositionID:   id,
		Expiry:       req.Expiry,
		BrokerID:     req.BrokerID,
		AffiliateID:  req.AffiliateID,
		PaymentCents: req.PaymentCents,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, settlementResponse(settlement))
}

type extendRequest struct {
	AdditionalDays int64  `json:"additional_days"`
	BrokerID       *int64 `json:"broker_id,omitempty"`
	AffiliateID    *int64 `json:"affiliate_id,omitempty"`
	PaymentCents   int64  `json:"payment_cents"`
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, ok := positionIDFromVars(w, r)
	if !ok {
		return
	}
	var req extendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	settlement, err := s.rental.Extend(r.Context(), service.ExtendInput{
		RenterID:       callerID(r),
		PositionID:     id,
		AdditionalDays: req.AdditionalDays,
		BrokerID:       req.BrokerID,
		AffiliateID:    req.AffiliateID,
		PaymentCents:   req.PaymentCents,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlementResponse(settlement))
}

func (s *Server) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	ref, ok := assetRefFromVars(w, r)
	if !ok {
		return
	}
	asset, err := s.rental.GetGrant(r.Context(), ref)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}
