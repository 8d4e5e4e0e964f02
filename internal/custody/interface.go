// Package custody models the asset custody collaborator: the registry that
// knows who owns each asset, whether the engine holds it, and the current
// time-boxed usage grant. The engine consumes this interface; grants are
// issued atomically by rental settlement and only expired ones are cleared
// here.
package custody

import (
	"context"
	"time"

	"stakelend-backend/internal/domain"
)

type AssetCustody interface {
	// Register records an asset and its owner. Idempotent for an identical
	// owner; re-registering under a different owner fails.
	Register(ctx context.Context, ref domain.AssetRef, ownerID int64) error
	Get(ctx context.Context, ref domain.AssetRef) (*domain.Asset, error)
	OwnerOf(ctx context.Context, ref domain.AssetRef) (int64, error)

	// SetCustodyApproval records the owner's consent for the engine to take
	// custody. Staking fails closed without it.
	SetCustodyApproval(ctx context.Context, ref domain.AssetRef, ownerID int64, approved bool) error
	IsCustodyApproved(ctx context.Context, ref domain.AssetRef) (bool, error)

	// SetOperatorApproval lets an owner delegate asset management to
	// another account across all of the owner's assets.
	SetOperatorApproval(ctx context.Context, ownerID, operatorID int64, approved bool) error
	IsApprovedOperator(ctx context.Context, ownerID, operatorID int64) (bool, error)

	// TransferIn moves the asset into engine custody; fails if it is
	// already custodied or custody was never approved.
	TransferIn(ctx context.Context, ref domain.AssetRef) error
	// TransferOut releases custody back to the given account and clears any
	// grant bookkeeping.
	TransferOut(ctx context.Context, ref domain.AssetRef, toID int64) error

	CurrentUser(ctx context.Context, ref domain.AssetRef) (*int64, error)
	CurrentUserExpiry(ctx context.Context, ref domain.AssetRef) (*time.Time, error)

	// ListExpiredGrants returns custodied assets whose grant expired before
	// asOf and has not been cleared yet.
	ListExpiredGrants(ctx context.Context, asOf time.Time) ([]domain.Asset, error)
	// ClearGrant removes an expired grant. It refuses to cut short a live
	// one.
	ClearGrant(ctx context.Context, ref domain.AssetRef, asOf time.Time) error
}
