package domain

import "time"

// BalanceClass names the four independent accumulators the ledger keeps.
type BalanceClass string

const (
	BalanceClassOwner     BalanceClass = "OWNER"
	BalanceClassProtocol  BalanceClass = "PROTOCOL"
	BalanceClassBroker    BalanceClass = "BROKER"
	BalanceClassAffiliate BalanceClass = "AFFILIATE"
)

type EntryType string

const (
	EntryTypeRentalCredit    EntryType = "RENTAL_CREDIT"
	EntryTypeExtensionCredit EntryType = "EXTENSION_CREDIT"
	EntryTypePayoutDebit     EntryType = "PAYOUT_DEBIT"
)

// LedgerEntry is one signed audit row. Balances are maintained as columns;
// entries exist so every cent of every balance can be traced to a rental or
// a payout.
type LedgerEntry struct {
	ID          int64        `json:"id"`
	Class       BalanceClass `json:"class"`
	AccountID   *int64       `json:"account_id,omitempty"`
	PositionID  *int64       `json:"position_id,omitempty"`
	AmountCents int64        `json:"amount_cents"` // positive for credit, negative for debit
	Type        EntryType    `json:"type"`
	Memo        string       `json:"memo"`
	CreatedOn   time.Time    `json:"created_on"`
}

// FeeRates is the process-wide fee configuration, stored as a timestamped
// history so past settlements stay auditable after a governance change.
type FeeRates struct {
	ProtocolPermille int64     `json:"protocol_permille"`
	BrokerPermille   int64     `json:"broker_permille"`
	EffectiveFrom    time.Time `json:"effective_from"`
	UpdatedBy        int64     `json:"updated_by"`
}

// RentalSettlement is the fully computed effect of a borrow or extension:
// the split, the parties, and the new grant expiry. The repository applies
// it in a single transaction.
type RentalSettlement struct {
	PositionID     int64
	Asset          AssetRef
	RenterID       int64
	BrokerID       *int64
	AffiliateID    *int64
	LendFeeCents   int64
	OwnerCents     int64
	ProtocolCents  int64
	BrokerCents    int64
	AffiliateCents int64
	NewExpiry      time.Time
	Extension      bool
}

// BalanceSnapshot is the nightly audit roll-up of all four balance classes.
type BalanceSnapshot struct {
	ID              int64     `json:"id"`
	OwnersCents     int64     `json:"owners_cents"`
	ProtocolCents   int64     `json:"protocol_cents"`
	BrokersCents    int64     `json:"brokers_cents"`
	AffiliatesCents int64     `json:"affiliates_cents"`
	TakenOn         time.Time `json:"taken_on"`
}
