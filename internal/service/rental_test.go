package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
	"stakelend-backend/internal/payment"
)

type rentalFixture struct {
	svc       RentalService
	stake     StakeService
	registry  *custody.MockCustody
	positions *fakePositionRepo
	ledger    *fakeLedgerRepo
	accounts  *fakeAccountRepo
	notifier  *fakeNotifier
	emailer   *fakeEmailer
	now       time.Time
}

func newRentalFixture(t *testing.T) *rentalFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	eng := engine.New()
	eng.SetNowFunc(func() time.Time { return now })

	receipts := newFakeReceiptRepo()
	positions := newFakePositionRepo(receipts)
	ledger := newFakeLedgerRepo(positions)
	registry := custody.NewMockCustody()
	feeCfg := newFakeFeeConfigRepo(50, 25)
	accounts := newFakeAccountRepo()
	notifier := &fakeNotifier{}
	emailer := &fakeEmailer{}

	rail := payment.NewMockRail()
	return &rentalFixture{
		svc:       NewRentalService(registry, positions, receipts, ledger, feeCfg, accounts, eng, notifier, emailer),
		stake:     NewStakeService(registry, positions, receipts, ledger, feeCfg, eng, rail),
		registry:  registry,
		positions: positions,
		ledger:    ledger,
		accounts:  accounts,
		notifier:  notifier,
		emailer:   emailer,
		now:       now,
	}
}

func (f *rentalFixture) stakePosition(t *testing.T, ownerID int64, ref domain.AssetRef) *domain.Position {
	t.Helper()
	ctx := context.Background()
	f.accounts.add(ownerID, domain.AccountRoleMember)
	require.NoError(t, f.registry.Register(ctx, ref, ownerID))
	require.NoError(t, f.stake.ApproveCustody(ctx, ownerID, ref, true))
	pos, _, err := f.stake.Stake(ctx, ownerID, ref, domain.Condition{
		FeePerDayCents:          10,
		LendLimitDate:           f.now.Add(30 * 24 * time.Hour),
		AffiliateRewardPermille: 100,
	})
	require.NoError(t, err)
	return pos
}

func TestBorrow(t *testing.T) {
	ctx := context.Background()
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}

	t.Run("settles and notifies the owner", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)
		affiliate := int64(7)

		s, err := f.svc.Borrow(ctx, BorrowInput{
			RenterID:     2,
			PositionID:   pos.ID,
			Expiry:       f.now.Add(5 * 24 * time.Hour),
			AffiliateID:  &affiliate,
			PaymentCents: 50,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(50), s.LendFeeCents)
		assert.Equal(t, int64(43), s.OwnerCents)

		// Balances credited through the settlement
		assert.Equal(t, int64(43), f.positions.positions[pos.ID].BalanceCents)
		assert.Equal(t, int64(2), f.ledger.protocolBalance)
		assert.Equal(t, int64(5), f.ledger.affiliateBalance[affiliate])

		require.Len(t, f.notifier.notes, 1)
		assert.Equal(t, int64(1), f.notifier.notes[0].AccountID)
		assert.Equal(t, []string{"rental_started"}, f.emailer.sent)
	})

	t.Run("settlement conflict propagates unchanged", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)
		f.ledger.settleErr = domain.ErrStateConflict

		_, err := f.svc.Borrow(ctx, BorrowInput{
			RenterID:     2,
			PositionID:   pos.ID,
			Expiry:       f.now.Add(5 * 24 * time.Hour),
			PaymentCents: 50,
		})
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.Empty(t, f.notifier.notes)
	})

	t.Run("payment mismatch rejected before settlement", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)

		_, err := f.svc.Borrow(ctx, BorrowInput{
			RenterID:     2,
			PositionID:   pos.ID,
			Expiry:       f.now.Add(5 * 24 * time.Hour),
			PaymentCents: 9999,
		})
		assert.ErrorIs(t, err, domain.ErrPaymentMismatch)
		assert.Empty(t, f.ledger.settlements)
	})
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}

	t.Run("extends a running rental from its current expiry", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)
		currentExpiry := f.now.Add(5 * 24 * time.Hour)
		f.registry.SetGrant(ref, 2, currentExpiry)

		s, err := f.svc.Extend(ctx, ExtendInput{
			RenterID:       2,
			PositionID:     pos.ID,
			AdditionalDays: 3,
			PaymentCents:   30,
		})
		require.NoError(t, err)
		assert.Equal(t, currentExpiry.Add(3*24*time.Hour), s.NewExpiry)
		assert.True(t, s.Extension)
		assert.Equal(t, []string{"rental_extended"}, f.emailer.sent)
	})

	t.Run("no running rental to extend", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)

		_, err := f.svc.Extend(ctx, ExtendInput{
			RenterID:       2,
			PositionID:     pos.ID,
			AdditionalDays: 3,
			PaymentCents:   30,
		})
		assert.ErrorIs(t, err, domain.ErrStateConflict)
	})

	t.Run("expired grant cannot be extended", func(t *testing.T) {
		f := newRentalFixture(t)
		pos := f.stakePosition(t, 1, ref)
		f.registry.SetGrant(ref, 2, f.now.Add(-time.Hour))

		_, err := f.svc.Extend(ctx, ExtendInput{
			RenterID:       2,
			PositionID:     pos.ID,
			AdditionalDays: 3,
			PaymentCents:   30,
		})
		assert.ErrorIs(t, err, domain.ErrStateConflict)
	})
}

func TestQuote(t *testing.T) {
	ctx := context.Background()
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}

	f := newRentalFixture(t)
	pos := f.stakePosition(t, 1, ref)

	split, err := f.svc.Quote(ctx, pos.ID, f.now.Add(5*24*time.Hour), false, true)
	require.NoError(t, err)
	assert.Equal(t, int64(50), split.LendFeeCents)
	assert.Equal(t, int64(2), split.ProtocolCents)
	assert.Equal(t, int64(5), split.AffiliateCents)
	assert.Equal(t, int64(43), split.OwnerCents)

	_, err = f.svc.Quote(ctx, pos.ID, f.now.Add(12*time.Hour), false, false)
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)

	// A quote under the minimum period must fail the same way the borrow
	// admission does.
	require.NoError(t, f.stake.ChangeMinimumPeriod(ctx, 1, pos.ID, 7))
	_, err = f.svc.Quote(ctx, pos.ID, f.now.Add(5*24*time.Hour), false, true)
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)
}
