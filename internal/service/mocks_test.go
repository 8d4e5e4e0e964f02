package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stakelend-backend/internal/domain"
)

// In-memory fakes for the repository contracts. They implement just enough
// behavior for the service tests, including the zero-then-pay rollback
// semantics of the real Postgres implementations.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	nextID   int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func (f *fakeAccountRepo) Create(_ context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == account.Email {
			return domain.ErrAccountExists
		}
	}
	f.nextID++
	account.ID = f.nextID
	account.CreatedOn = time.Now()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeAccountRepo) add(id int64, role domain.AccountRole) *domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &domain.Account{ID: id, Email: fmt.Sprintf("acct%d@test", id), Name: fmt.Sprintf("acct%d", id), Role: role}
	f.accounts[id] = a
	return a
}

type fakePositionRepo struct {
	mu          sync.Mutex
	positions   map[int64]*domain.Position
	rentedUntil map[int64]time.Time
	nextID      int64
	receipts    *fakeReceiptRepo
}

func newFakePositionRepo(receipts *fakeReceiptRepo) *fakePositionRepo {
	return &fakePositionRepo{
		positions:   make(map[int64]*domain.Position),
		rentedUntil: make(map[int64]time.Time),
		receipts:    receipts,
	}
}

func (f *fakePositionRepo) Stake(_ context.Context, asset domain.AssetRef, cond domain.Condition, serial string, ownerID int64, now time.Time) (*domain.Position, *domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	pos := &domain.Position{
		ID:        f.nextID,
		Asset:     asset,
		State:     domain.PositionStateActive,
		Condition: cond,
		CreatedOn: now,
	}
	f.positions[pos.ID] = pos
	rec := &domain.Receipt{Serial: serial, PositionID: pos.ID, OwnerAccountID: ownerID, CreatedOn: now}
	if f.receipts != nil {
		f.receipts.put(rec)
	}
	return pos, rec, nil
}

func (f *fakePositionRepo) GetByID(_ context.Context, id int64) (*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	cp := *pos
	return &cp, nil
}

func (f *fakePositionRepo) GetActiveByAsset(_ context.Context, asset domain.AssetRef) (*domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pos := range f.positions {
		if pos.Asset == asset && pos.State == domain.PositionStateActive {
			cp := *pos
			return &cp, nil
		}
	}
	return nil, domain.ErrPositionNotFound
}

func (f *fakePositionRepo) UpdateCondition(_ context.Context, id int64, cond domain.Condition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[id]
	if !ok {
		return domain.ErrPositionNotFound
	}
	if pos.State != domain.PositionStateActive {
		return domain.ErrPolicyViolation
	}
	pos.Condition = cond
	return nil
}

func (f *fakePositionRepo) Withdraw(_ context.Context, id int64, now time.Time, pay func(balanceCents int64) error) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[id]
	if !ok {
		return 0, domain.ErrPositionNotFound
	}
	if pos.State != domain.PositionStateActive {
		return 0, domain.ErrPolicyViolation
	}
	if until, rented := f.rentedUntil[id]; rented && !until.Before(now) {
		return 0, domain.ErrStateConflict
	}
	balance := pos.BalanceCents
	if balance > 0 {
		if err := pay(balance); err != nil {
			return 0, err
		}
	}
	pos.State = domain.PositionStateWithdrawn
	pos.BalanceCents = 0
	pos.WithdrawnOn = &now
	return balance, nil
}

func (f *fakePositionRepo) ListByContract(_ context.Context, contract string) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, pos := range f.positions {
		if pos.Asset.Contract == contract && pos.State == domain.PositionStateActive {
			out = append(out, *pos)
		}
	}
	return out, nil
}

type fakeReceiptRepo struct {
	mu       sync.Mutex
	receipts map[string]*domain.Receipt
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{receipts: make(map[string]*domain.Receipt)}
}

func (f *fakeReceiptRepo) put(rec *domain.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[rec.Serial] = rec
}

func (f *fakeReceiptRepo) GetByPosition(_ context.Context, positionID int64) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.receipts {
		if rec.PositionID == positionID {
			return rec, nil
		}
	}
	return nil, domain.ErrReceiptNotFound
}

func (f *fakeReceiptRepo) GetBySerial(_ context.Context, serial string) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.receipts[serial]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	return rec, nil
}

func (f *fakeReceiptRepo) ListByOwner(_ context.Context, ownerID int64) ([]domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Receipt
	for _, rec := range f.receipts {
		if rec.OwnerAccountID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeReceiptRepo) Transfer(_ context.Context, serial string, fromID, toID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.receipts[serial]
	if !ok {
		return domain.ErrReceiptNotFound
	}
	if rec.OwnerAccountID != fromID {
		return domain.ErrUnauthorized
	}
	rec.OwnerAccountID = toID
	return nil
}

type fakeLedgerRepo struct {
	mu               sync.Mutex
	positions        *fakePositionRepo
	settlements      []*domain.RentalSettlement
	settleErr        error
	brokerBalances   map[int64]int64
	affiliateBalance map[int64]int64
	protocolBalance  int64
	entries          []domain.LedgerEntry
}

func newFakeLedgerRepo(positions *fakePositionRepo) *fakeLedgerRepo {
	return &fakeLedgerRepo{
		positions:        positions,
		brokerBalances:   make(map[int64]int64),
		affiliateBalance: make(map[int64]int64),
	}
}

func (f *fakeLedgerRepo) SettleRental(_ context.Context, s *domain.RentalSettlement, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return f.settleErr
	}
	if s.Extension {
		if until, ok := f.positions.rentedUntil[s.PositionID]; ok && !s.NewExpiry.After(until) {
			return domain.ErrStateConflict
		}
	}
	if pos, ok := f.positions.positions[s.PositionID]; ok {
		pos.BalanceCents += s.OwnerCents
	}
	f.protocolBalance += s.ProtocolCents
	if s.BrokerID != nil {
		f.brokerBalances[*s.BrokerID] += s.BrokerCents
	}
	if s.AffiliateID != nil {
		f.affiliateBalance[*s.AffiliateID] += s.AffiliateCents
	}
	f.positions.rentedUntil[s.PositionID] = s.NewExpiry
	f.settlements = append(f.settlements, s)
	return nil
}

func (f *fakeLedgerRepo) WithdrawPositionBalance(_ context.Context, positionID int64, pay func(amountCents int64) error) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions.positions[positionID]
	if !ok {
		return 0, domain.ErrPositionNotFound
	}
	balance := pos.BalanceCents
	if balance == 0 {
		return 0, nil
	}
	if err := pay(balance); err != nil {
		return 0, err
	}
	pos.BalanceCents = 0
	return balance, nil
}

func (f *fakeLedgerRepo) WithdrawAccumulator(_ context.Context, class domain.BalanceClass, accountID int64, pay func(amountCents int64) error) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balances := f.brokerBalances
	if class == domain.BalanceClassAffiliate {
		balances = f.affiliateBalance
	}
	balance := balances[accountID]
	if balance == 0 {
		return 0, nil
	}
	if err := pay(balance); err != nil {
		return 0, err
	}
	balances[accountID] = 0
	return balance, nil
}

func (f *fakeLedgerRepo) WithdrawProtocol(_ context.Context, pay func(amountCents int64) error) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance := f.protocolBalance
	if balance == 0 {
		return 0, nil
	}
	if err := pay(balance); err != nil {
		return 0, err
	}
	f.protocolBalance = 0
	return balance, nil
}

func (f *fakeLedgerRepo) GetAccumulator(_ context.Context, class domain.BalanceClass, accountID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class == domain.BalanceClassAffiliate {
		return f.affiliateBalance[accountID], nil
	}
	return f.brokerBalances[accountID], nil
}

func (f *fakeLedgerRepo) GetProtocolBalance(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.protocolBalance, nil
}

func (f *fakeLedgerRepo) ListEntries(_ context.Context, accountID, positionID *int64, limit, offset int32) ([]domain.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LedgerEntry(nil), f.entries...), nil
}

func (f *fakeLedgerRepo) ListAccumulatorsAbove(_ context.Context, class domain.BalanceClass, thresholdCents int64) (map[int64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balances := f.brokerBalances
	if class == domain.BalanceClassAffiliate {
		balances = f.affiliateBalance
	}
	out := make(map[int64]int64)
	for id, b := range balances {
		if b >= thresholdCents {
			out[id] = b
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) TakeSnapshot(_ context.Context, now time.Time) (*domain.BalanceSnapshot, error) {
	return &domain.BalanceSnapshot{TakenOn: now}, nil
}

type fakeFeeConfigRepo struct {
	rates domain.FeeRates
	log   []domain.FeeRates
}

func newFakeFeeConfigRepo(protocol, broker int64) *fakeFeeConfigRepo {
	return &fakeFeeConfigRepo{rates: domain.FeeRates{ProtocolPermille: protocol, BrokerPermille: broker}}
}

func (f *fakeFeeConfigRepo) Current(_ context.Context) (*domain.FeeRates, error) {
	cp := f.rates
	return &cp, nil
}

func (f *fakeFeeConfigRepo) Append(_ context.Context, rates domain.FeeRates) error {
	f.rates = rates
	f.log = append(f.log, rates)
	return nil
}

func (f *fakeFeeConfigRepo) EnsureDefault(_ context.Context, rates domain.FeeRates) error {
	if len(f.log) == 0 {
		f.rates = rates
	}
	return nil
}

type recordedNotification struct {
	AccountID int64
	Title     string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, accountID int64, title, message string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, recordedNotification{AccountID: accountID, Title: title})
	return nil
}

func (f *fakeNotifier) List(_ context.Context, accountID int64, limit, offset int32) ([]domain.Notification, int32, error) {
	return nil, 0, nil
}

func (f *fakeNotifier) MarkAsRead(_ context.Context, id, accountID int64) error { return nil }

type fakeEmailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeEmailer) record(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, kind)
	return nil
}

func (f *fakeEmailer) SendRentalStarted(_ context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error {
	return f.record("rental_started")
}

func (f *fakeEmailer) SendRentalExtended(_ context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error {
	return f.record("rental_extended")
}

func (f *fakeEmailer) SendAssetAvailable(_ context.Context, email, name string, ref domain.AssetRef) error {
	return f.record("asset_available")
}

func (f *fakeEmailer) SendPayoutConfirmation(_ context.Context, email, name string, amountCents int64) error {
	return f.record("payout_confirmation")
}
