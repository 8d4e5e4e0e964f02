package domain

import "time"

// Receipt is the bearer token bound 1:1 to a staked position. Whoever holds
// the receipt controls the position: condition changes, balance claims and
// the final withdrawal all authorize against receipt ownership, and
// transferring the receipt transfers that control.
type Receipt struct {
	Serial         string    `json:"serial"`
	PositionID     int64     `json:"position_id"`
	OwnerAccountID int64     `json:"owner_account_id"`
	CreatedOn      time.Time `json:"created_on"`
}
