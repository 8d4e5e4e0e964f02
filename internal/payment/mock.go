package payment

import (
	"context"
	"sync"
)

// MockRail records payouts in memory for tests and local development. A
// non-nil FailWith makes every payout fail, which is how tests exercise the
// rollback path.
type MockRail struct {
	mu       sync.Mutex
	FailWith error
	payouts  []RecordedPayout
}

type RecordedPayout struct {
	PayeeAccountID int64
	AmountCents    int64
	Memo           string
}

func NewMockRail() *MockRail {
	return &MockRail{}
}

func (m *MockRail) Payout(_ context.Context, payeeAccountID int64, amountCents int64, memo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.payouts = append(m.payouts, RecordedPayout{
		PayeeAccountID: payeeAccountID,
		AmountCents:    amountCents,
		Memo:           memo,
	})
	return nil
}

// Payouts returns a copy of everything paid so far.
func (m *MockRail) Payouts() []RecordedPayout {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedPayout, len(m.payouts))
	copy(out, m.payouts)
	return out
}
