package domain

import (
	"fmt"
	"time"
)

// AssetRef identifies an asset by its originating contract and token id.
type AssetRef struct {
	Contract string `json:"contract"`
	TokenID  int64  `json:"token_id"`
}

func (r AssetRef) String() string {
	return fmt.Sprintf("%s/%d", r.Contract, r.TokenID)
}

// Asset is the custody registry's view of a single asset: who owns it,
// whether it sits in engine custody, and the current time-boxed usage grant.
type Asset struct {
	Ref             AssetRef   `json:"ref"`
	OwnerAccountID  int64      `json:"owner_account_id"`
	Custodied       bool       `json:"custodied"`
	CustodyApproved bool       `json:"custody_approved"`
	CurrentUserID   *int64     `json:"current_user_id,omitempty"`
	UserExpiry      *time.Time `json:"user_expiry,omitempty"`
}

// RentedAt reports whether the asset carries an unexpired usage grant at t.
func (a *Asset) RentedAt(t time.Time) bool {
	return a.CurrentUserID != nil && a.UserExpiry != nil && !a.UserExpiry.Before(t)
}
