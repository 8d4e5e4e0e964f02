// Package payment models the payout rail: the external system that pushes
// value to an account once the ledger has released it. A rail failure must
// surface as an operation failure; callers invoke Payout inside their
// transaction and roll back when it errors.
package payment

import "context"

type Rail interface {
	// Payout pushes amountCents to the payee account. The memo travels to
	// the processor for reconciliation.
	Payout(ctx context.Context, payeeAccountID int64, amountCents int64, memo string) error
}
