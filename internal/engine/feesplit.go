package engine

import (
	"time"

	"stakelend-backend/internal/domain"
)

const secondsPerDay = 86400

// Split is the division of one lend fee across the four balance classes.
// The owner share is always the remainder, so integer-division dust accrues
// to the owner and the four shares sum to the lend fee exactly.
type Split struct {
	LendFeeCents   int64 `json:"lend_fee_cents"`
	ProtocolCents  int64 `json:"protocol_cents"`
	BrokerCents    int64 `json:"broker_cents"`
	AffiliateCents int64 `json:"affiliate_cents"`
	OwnerCents     int64 `json:"owner_cents"`
}

// DurationDays converts the span between now and expiry into whole days,
// truncating toward zero. Fractional-day remainders are not charged.
func DurationDays(now, expiry time.Time) int64 {
	secs := expiry.Unix() - now.Unix()
	if secs <= 0 {
		return 0
	}
	return secs / secondsPerDay
}

// LendFee is the total rental fee for the given whole-day duration.
func LendFee(days, feePerDayCents int64) int64 {
	return days * feePerDayCents
}

// ComputeSplit divides lendFee between protocol, broker, affiliate and
// owner. Broker and affiliate cuts apply only when the respective party is
// present on the request. Shares are computed in a fixed order; the owner
// receives whatever remains.
func ComputeSplit(lendFeeCents int64, rates domain.FeeRates, affiliatePermille int64, hasBroker, hasAffiliate bool) Split {
	s := Split{LendFeeCents: lendFeeCents}
	s.ProtocolCents = lendFeeCents * rates.ProtocolPermille / domain.RateDenominator
	if hasBroker {
		s.BrokerCents = lendFeeCents * rates.BrokerPermille / domain.RateDenominator
	}
	if hasAffiliate {
		s.AffiliateCents = lendFeeCents * affiliatePermille / domain.RateDenominator
	}
	s.OwnerCents = lendFeeCents - s.ProtocolCents - s.BrokerCents - s.AffiliateCents
	return s
}
