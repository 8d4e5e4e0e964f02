// Package engine holds the rental accounting core: duration and fee-split
// arithmetic, condition validation and the borrow/extend admission checks.
// It is pure computation over domain values; persistence and custody are the
// caller's problem.
package engine

import (
	"fmt"
	"time"

	"stakelend-backend/internal/domain"
)

// Engine validates rental requests and produces settlements. The time
// source is injectable so deadline logic is deterministic under test.
type Engine struct {
	nowFn func() time.Time
}

func New() *Engine {
	return &Engine{nowFn: time.Now}
}

// SetNowFunc overrides the engine's time source. Passing nil resets it to
// the wall clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) Now() time.Time { return e.nowFn() }

// ValidateRates checks a governance fee-rate update. Each rate must leave
// room for a positive owner residual even against the largest admissible
// affiliate reward, so both are bounded by the denominator.
func (e *Engine) ValidateRates(rates domain.FeeRates) error {
	if rates.ProtocolPermille < 0 || rates.ProtocolPermille >= domain.RateDenominator {
		return fmt.Errorf("%w: protocol fee %d out of range", domain.ErrPolicyViolation, rates.ProtocolPermille)
	}
	if rates.BrokerPermille < 0 || rates.BrokerPermille >= domain.RateDenominator {
		return fmt.Errorf("%w: broker fee %d out of range", domain.ErrPolicyViolation, rates.BrokerPermille)
	}
	return nil
}

// ValidateCondition checks a full or partial condition update against the
// current fee rates. The affiliate reward plus the protocol cut must stay
// strictly under the denominator so the owner's residual share is positive.
func (e *Engine) ValidateCondition(c domain.Condition, rates domain.FeeRates) error {
	if c.FeePerDayCents < 0 {
		return fmt.Errorf("%w: fee per day must not be negative", domain.ErrPolicyViolation)
	}
	if c.MinimumPeriodDays < 0 {
		return fmt.Errorf("%w: minimum period must not be negative", domain.ErrPolicyViolation)
	}
	if c.AffiliateRewardPermille < 0 {
		return fmt.Errorf("%w: affiliate reward must not be negative", domain.ErrPolicyViolation)
	}
	if c.AffiliateRewardPermille+rates.ProtocolPermille >= domain.RateDenominator {
		return fmt.Errorf("%w: affiliate reward %d + protocol fee %d must stay under %d",
			domain.ErrPolicyViolation, c.AffiliateRewardPermille, rates.ProtocolPermille, domain.RateDenominator)
	}
	return nil
}

// BorrowRequest is an admission request for a fresh rental.
type BorrowRequest struct {
	RenterID        int64
	RequestedExpiry time.Time
	BrokerID        *int64
	AffiliateID     *int64
	PaymentCents    int64
}

// QuoteBorrow runs the borrow admission checks 1-5 and returns the
// settlement to apply. It performs no mutation: the repository re-validates
// availability under lock when the settlement is applied.
func (e *Engine) QuoteBorrow(pos *domain.Position, rates domain.FeeRates, req BorrowRequest) (*domain.RentalSettlement, error) {
	now := e.Now()
	if pos.State != domain.PositionStateActive {
		return nil, fmt.Errorf("%w: position %d is withdrawn", domain.ErrPolicyViolation, pos.ID)
	}
	cond := pos.Condition
	if !req.RequestedExpiry.Before(cond.LendLimitDate) {
		return nil, fmt.Errorf("%w: requested expiry %s is not before lend limit %s",
			domain.ErrPolicyViolation, req.RequestedExpiry.Format(time.RFC3339), cond.LendLimitDate.Format(time.RFC3339))
	}
	days := DurationDays(now, req.RequestedExpiry)
	if days < 1 {
		return nil, fmt.Errorf("%w: rental must cover at least one whole day", domain.ErrPolicyViolation)
	}
	if cond.MinimumPeriodDays > 0 && days < cond.MinimumPeriodDays {
		return nil, fmt.Errorf("%w: rental of %d days is under the minimum period of %d days",
			domain.ErrPolicyViolation, days, cond.MinimumPeriodDays)
	}
	split, err := e.split(cond, rates, days, req.BrokerID != nil, req.AffiliateID != nil)
	if err != nil {
		return nil, err
	}
	if req.PaymentCents != split.LendFeeCents {
		return nil, fmt.Errorf("%w: supplied %d, required %d", domain.ErrPaymentMismatch, req.PaymentCents, split.LendFeeCents)
	}
	return &domain.RentalSettlement{
		PositionID:     pos.ID,
		Asset:          pos.Asset,
		RenterID:       req.RenterID,
		BrokerID:       req.BrokerID,
		AffiliateID:    req.AffiliateID,
		LendFeeCents:   split.LendFeeCents,
		OwnerCents:     split.OwnerCents,
		ProtocolCents:  split.ProtocolCents,
		BrokerCents:    split.BrokerCents,
		AffiliateCents: split.AffiliateCents,
		NewExpiry:      req.RequestedExpiry,
		Extension:      false,
	}, nil
}

// ExtendRequest is an admission request for lengthening an active rental.
type ExtendRequest struct {
	RenterID       int64
	CurrentExpiry  time.Time
	AdditionalDays int64
	BrokerID       *int64
	AffiliateID    *int64
	PaymentCents   int64
}

// QuoteExtension validates an extension and returns its settlement. The new
// expiry is the current one plus whole days, still strictly bounded by the
// lend limit date.
func (e *Engine) QuoteExtension(pos *domain.Position, rates domain.FeeRates, req ExtendRequest) (*domain.RentalSettlement, error) {
	if pos.State != domain.PositionStateActive {
		return nil, fmt.Errorf("%w: position %d is withdrawn", domain.ErrPolicyViolation, pos.ID)
	}
	if req.AdditionalDays < 1 {
		return nil, fmt.Errorf("%w: extension must add at least one whole day", domain.ErrPolicyViolation)
	}
	cond := pos.Condition
	newExpiry := req.CurrentExpiry.Add(time.Duration(req.AdditionalDays) * 24 * time.Hour)
	if !newExpiry.Before(cond.LendLimitDate) {
		return nil, fmt.Errorf("%w: extended expiry %s is not before lend limit %s",
			domain.ErrPolicyViolation, newExpiry.Format(time.RFC3339), cond.LendLimitDate.Format(time.RFC3339))
	}
	split, err := e.split(cond, rates, req.AdditionalDays, req.BrokerID != nil, req.AffiliateID != nil)
	if err != nil {
		return nil, err
	}
	if req.PaymentCents != split.LendFeeCents {
		return nil, fmt.Errorf("%w: supplied %d, required %d", domain.ErrPaymentMismatch, req.PaymentCents, split.LendFeeCents)
	}
	return &domain.RentalSettlement{
		PositionID:     pos.ID,
		Asset:          pos.Asset,
		RenterID:       req.RenterID,
		BrokerID:       req.BrokerID,
		AffiliateID:    req.AffiliateID,
		LendFeeCents:   split.LendFeeCents,
		OwnerCents:     split.OwnerCents,
		ProtocolCents:  split.ProtocolCents,
		BrokerCents:    split.BrokerCents,
		AffiliateCents: split.AffiliateCents,
		NewExpiry:      newExpiry,
		Extension:      true,
	}, nil
}

// split computes the fee split for the given duration, guarding against a
// rate combination that would drive the owner share negative. Conditions
// are validated when set, but the protocol and broker rates can move
// afterwards, so the sum is re-checked here.
func (e *Engine) split(cond domain.Condition, rates domain.FeeRates, days int64, hasBroker, hasAffiliate bool) (Split, error) {
	applied := rates.ProtocolPermille
	if hasBroker {
		applied += rates.BrokerPermille
	}
	if hasAffiliate {
		applied += cond.AffiliateRewardPermille
	}
	if applied >= domain.RateDenominator {
		return Split{}, fmt.Errorf("%w: combined fee rates %d exceed denominator %d",
			domain.ErrPolicyViolation, applied, domain.RateDenominator)
	}
	fee := LendFee(days, cond.FeePerDayCents)
	return ComputeSplit(fee, rates, cond.AffiliateRewardPermille, hasBroker, hasAffiliate), nil
}
