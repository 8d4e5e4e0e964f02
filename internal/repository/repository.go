package repository

import (
	"context"
	"time"

	"stakelend-backend/internal/domain"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

type PositionRepository interface {
	// Stake creates a position plus its receipt in one transaction. The
	// asset must already be in custody and free of an active position.
	Stake(ctx context.Context, asset domain.AssetRef, cond domain.Condition, serial string, ownerID int64, now time.Time) (*domain.Position, *domain.Receipt, error)
	GetByID(ctx context.Context, id int64) (*domain.Position, error)
	GetActiveByAsset(ctx context.Context, asset domain.AssetRef) (*domain.Position, error)
	// UpdateCondition overwrites the condition wholesale. minExpiry guards
	// the lend limit: the new limit must be strictly after it.
	UpdateCondition(ctx context.Context, id int64, cond domain.Condition) error
	// Withdraw marks the position withdrawn, burns the receipt and pays any
	// residual balance through pay, all in one transaction. Fails with
	// ErrStateConflict while an unexpired grant exists.
	Withdraw(ctx context.Context, id int64, now time.Time, pay func(balanceCents int64) error) (int64, error)
	ListByContract(ctx context.Context, contract string) ([]domain.Position, error)
}

type ReceiptRepository interface {
	GetByPosition(ctx context.Context, positionID int64) (*domain.Receipt, error)
	GetBySerial(ctx context.Context, serial string) (*domain.Receipt, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Receipt, error)
	Transfer(ctx context.Context, serial string, fromID, toID int64) error
}

type LedgerRepository interface {
	// SettleRental applies a computed settlement atomically: it re-checks
	// availability (or current-renter identity for extensions) under row
	// locks, credits all four balance classes, writes the audit entries and
	// records the new grant. Nothing is applied on any failure.
	SettleRental(ctx context.Context, s *domain.RentalSettlement, now time.Time) error
	// WithdrawPositionBalance zeroes the position balance, then invokes pay
	// with the zeroed amount before committing; a pay failure rolls the
	// whole withdrawal back. Returns the amount paid (0 when the balance
	// was already empty).
	WithdrawPositionBalance(ctx context.Context, positionID int64, pay func(amountCents int64) error) (int64, error)
	// WithdrawAccumulator drains a broker or affiliate balance with the
	// same zero-then-pay discipline.
	WithdrawAccumulator(ctx context.Context, class domain.BalanceClass, accountID int64, pay func(amountCents int64) error) (int64, error)
	WithdrawProtocol(ctx context.Context, pay func(amountCents int64) error) (int64, error)
	GetAccumulator(ctx context.Context, class domain.BalanceClass, accountID int64) (int64, error)
	GetProtocolBalance(ctx context.Context) (int64, error)
	ListEntries(ctx context.Context, accountID, positionID *int64, limit, offset int32) ([]domain.LedgerEntry, error)
	// ListAccumulatorsAbove returns broker/affiliate accounts whose balance
	// meets the settlement threshold.
	ListAccumulatorsAbove(ctx context.Context, class domain.BalanceClass, thresholdCents int64) (map[int64]int64, error)
	TakeSnapshot(ctx context.Context, now time.Time) (*domain.BalanceSnapshot, error)
}

type FeeConfigRepository interface {
	Current(ctx context.Context) (*domain.FeeRates, error)
	// Append records a new timestamped rate row; history is never updated
	// in place.
	Append(ctx context.Context, rates domain.FeeRates) error
	// EnsureDefault seeds the initial rates when the history is empty.
	EnsureDefault(ctx context.Context, rates domain.FeeRates) error
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, accountID int64) error
}
