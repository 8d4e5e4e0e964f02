package domain

import "errors"

// Error taxonomy for the engine. Every rejection maps onto one of these
// sentinels so callers (and the HTTP layer) can classify failures without
// string matching. All of them mean "nothing was mutated".
var (
	// ErrUnauthorized: caller lacks ownership or approval for the target.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrPolicyViolation: the request conflicts with the position's
	// condition or the engine's rate invariants.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrPaymentMismatch: supplied payment does not equal the required fee.
	ErrPaymentMismatch = errors.New("payment does not match required fee")

	// ErrStateConflict: the asset is already rented out.
	ErrStateConflict = errors.New("asset already rented")

	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrReceiptNotFound  = errors.New("receipt not found")
)
