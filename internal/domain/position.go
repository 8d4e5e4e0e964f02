package domain

import "time"

type PositionState string

const (
	PositionStateActive    PositionState = "ACTIVE"
	PositionStateWithdrawn PositionState = "WITHDRAWN"
)

// RateDenominator is the denominator for all fee rates: protocol, broker
// and affiliate cuts are expressed in thousandths of the lend fee.
const RateDenominator = 1000

// Condition is the rental pricing attached to a staked position. It is
// overwritten wholesale by SetCondition; the field-level setters re-validate
// the cross-field invariants before touching a single field.
type Condition struct {
	FeePerDayCents          int64     `json:"fee_per_day_cents"`
	LendLimitDate           time.Time `json:"lend_limit_date"`
	MinimumPeriodDays       int64     `json:"minimum_period_days,omitempty"` // 0 = no minimum
	AffiliateRewardPermille int64     `json:"affiliate_reward_permille"`
}

// Position is a staked asset under engine custody together with its rental
// condition and the owner's accrued, unclaimed earnings.
type Position struct {
	ID          int64         `json:"id"`
	Asset       AssetRef      `json:"asset"`
	State       PositionState `json:"state"`
	BalanceCents int64        `json:"balance_cents"`
	Condition   Condition     `json:"condition"`
	CreatedOn   time.Time     `json:"created_on"`
	WithdrawnOn *time.Time    `json:"withdrawn_on,omitempty"`
}
