package domain

import "time"

type AccountRole string

const (
	AccountRoleMember     AccountRole = "MEMBER"
	AccountRoleGovernance AccountRole = "GOVERNANCE"
)

// Account is an authenticated party: asset owners, renters, brokers and
// affiliates are all plain accounts. Governance accounts may additionally
// change the process-wide fee rates and drain the protocol treasury.
type Account struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Role         AccountRole `json:"role"`
	CreatedOn    time.Time   `json:"created_on"`
}
