// Package service implements the application use cases on top of the
// repositories, the custody registry, the payout rail and the accounting
// engine. Handlers talk to these interfaces only.
package service

import (
	"context"
	"time"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.Account, error)
	// Login returns the account plus an access and a refresh token.
	Login(ctx context.Context, email, password string) (*domain.Account, string, string, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
}

// StakeService covers the owner side: custody approval, staking, condition
// management, receipt transfer and the two withdrawals.
type StakeService interface {
	RegisterAsset(ctx context.Context, ref domain.AssetRef, ownerID int64) error
	ApproveCustody(ctx context.Context, callerID int64, ref domain.AssetRef, approved bool) error
	SetOperatorApproval(ctx context.Context, callerID, operatorID int64, approved bool) error

	// Stake pulls an approved asset into custody and opens a position with
	// the given condition, minting the receipt to the caller.
	Stake(ctx context.Context, callerID int64, ref domain.AssetRef, cond domain.Condition) (*domain.Position, *domain.Receipt, error)

	SetCondition(ctx context.Context, callerID, positionID int64, cond domain.Condition) error
	ChangeFeePerDay(ctx context.Context, callerID, positionID, feePerDayCents int64) error
	ChangeLendLimitDate(ctx context.Context, callerID, positionID int64, limit time.Time) error
	ChangeMinimumPeriod(ctx context.Context, callerID, positionID, days int64) error
	ChangeAffiliateReward(ctx context.Context, callerID, positionID, permille int64) error

	// WithdrawAsset ends the position: any residual balance is paid out,
	// the receipt is burned and the asset leaves custody back to the
	// caller. Fails while a rental is running.
	WithdrawAsset(ctx context.Context, callerID, positionID int64) (int64, error)
	// WithdrawBalance pays out the position's accrued earnings without
	// touching the position itself.
	WithdrawBalance(ctx context.Context, callerID, positionID int64) (int64, error)

	TransferReceipt(ctx context.Context, callerID int64, serial string, toID int64) error

	GetPosition(ctx context.Context, positionID int64) (*domain.Position, error)
	GetPositionByAsset(ctx context.Context, ref domain.AssetRef) (*domain.Position, error)
	ListPositionsByOwner(ctx context.Context, ownerID int64) ([]domain.Position, error)
	ListPositionsByContract(ctx context.Context, contract string) ([]domain.Position, error)
	GetReceipt(ctx context.Context, serial string) (*domain.Receipt, error)
}

// BorrowInput carries everything a renter submits for a fresh rental.
type BorrowInput struct {
	RenterID     int64
	PositionID   int64
	Expiry       time.Time
	BrokerID     *int64
	AffiliateID  *int64
	PaymentCents int64
}

// ExtendInput carries an extension request for a running rental.
type ExtendInput struct {
	RenterID       int64
	PositionID     int64
	AdditionalDays int64
	BrokerID       *int64
	AffiliateID    *int64
	PaymentCents   int64
}

type RentalService interface {
	// Quote prices a rental ending at expiry without committing anything.
	Quote(ctx context.Context, positionID int64, expiry time.Time, hasBroker, hasAffiliate bool) (*engine.Split, error)
	Borrow(ctx context.Context, in BorrowInput) (*domain.RentalSettlement, error)
	Extend(ctx context.Context, in ExtendInput) (*domain.RentalSettlement, error)
	// GetGrant returns the asset's current usage grant state.
	GetGrant(ctx context.Context, ref domain.AssetRef) (*domain.Asset, error)
}

type LedgerService interface {
	GetPositionBalance(ctx context.Context, positionID int64) (int64, error)
	GetBrokerBalance(ctx context.Context, accountID int64) (int64, error)
	GetAffiliateBalance(ctx context.Context, accountID int64) (int64, error)
	WithdrawBrokerBalance(ctx context.Context, accountID int64) (int64, error)
	WithdrawAffiliateBalance(ctx context.Context, accountID int64) (int64, error)
	ListEntries(ctx context.Context, accountID, positionID *int64, limit, offset int32) ([]domain.LedgerEntry, error)
}

// AdminService is the governance surface. Every method checks the caller's
// role before acting.
type AdminService interface {
	GetFeeRates(ctx context.Context) (*domain.FeeRates, error)
	SetProtocolFee(ctx context.Context, callerID, permille int64) error
	SetBrokerFee(ctx context.Context, callerID, permille int64) error
	GetTreasuryBalance(ctx context.Context, callerID int64) (int64, error)
	// WithdrawTreasury drains the protocol treasury to the payee account.
	WithdrawTreasury(ctx context.Context, callerID, payeeID int64) (int64, error)
}

type EmailService interface {
	SendRentalStarted(ctx context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error
	SendRentalExtended(ctx context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error
	SendAssetAvailable(ctx context.Context, email, name string, ref domain.AssetRef) error
	SendPayoutConfirmation(ctx context.Context, email, name string, amountCents int64) error
}

type NotificationService interface {
	Notify(ctx context.Context, accountID int64, title, message string, attrs map[string]string) error
	List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, accountID int64) error
}
