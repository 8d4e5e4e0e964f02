package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakelend-backend/internal/domain"
)

var settleNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func settlementFixture() *domain.RentalSettlement {
	broker := int64(3)
	affiliate := int64(4)
	return &domain.RentalSettlement{
		PositionID:     1,
		Asset:          domain.AssetRef{Contract: "vault-a", TokenID: 42},
		RenterID:       2,
		BrokerID:       &broker,
		AffiliateID:    &affiliate,
		LendFeeCents:   1000,
		OwnerCents:     825,
		ProtocolCents:  50,
		BrokerCents:    25,
		AffiliateCents: 100,
		NewExpiry:      settleNow.Add(5 * 24 * time.Hour),
		Extension:      false,
	}
}

func TestSettleRental(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLedgerRepository(db)
	ctx := context.Background()

	t.Run("borrow credits all four classes and records the grant", func(t *testing.T) {
		s := settlementFixture()
		lendLimit := settleNow.Add(30 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, lend_limit_date FROM positions").
			WithArgs(s.PositionID).
			WillReturnRows(sqlmock.NewRows([]string{"state", "lend_limit_date"}).AddRow("ACTIVE", lendLimit))
		mock.ExpectQuery("SELECT custodied, current_user_id, user_expiry FROM assets").
			WithArgs(s.Asset.Contract, s.Asset.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied", "current_user_id", "user_expiry"}).AddRow(true, nil, nil))

		mock.ExpectExec("UPDATE positions SET balance_cents").
			WithArgs(s.PositionID, s.OwnerCents).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(domain.BalanceClassOwner, nil, &s.PositionID, s.OwnerCents, domain.EntryTypeRentalCredit, sqlmock.AnyArg(), settleNow).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE protocol_treasury").
			WithArgs(s.ProtocolCents).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(domain.BalanceClassProtocol, nil, &s.PositionID, s.ProtocolCents, domain.EntryTypeRentalCredit, "protocol share", settleNow).
			WillReturnResult(sqlmock.NewResult(2, 1))

		mock.ExpectExec("INSERT INTO broker_balances").
			WithArgs(*s.BrokerID, s.BrokerCents).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(domain.BalanceClassBroker, s.BrokerID, &s.PositionID, s.BrokerCents, domain.EntryTypeRentalCredit, "broker share", settleNow).
			WillReturnResult(sqlmock.NewResult(3, 1))

		mock.ExpectExec("INSERT INTO affiliate_balances").
			WithArgs(*s.AffiliateID, s.AffiliateCents).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(domain.BalanceClassAffiliate, s.AffiliateID, &s.PositionID, s.AffiliateCents, domain.EntryTypeRentalCredit, "affiliate reward", settleNow).
			WillReturnResult(sqlmock.NewResult(4, 1))

		mock.ExpectExec("UPDATE assets SET current_user_id").
			WithArgs(s.Asset.Contract, s.Asset.TokenID, s.RenterID, s.NewExpiry).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.SettleRental(ctx, s, settleNow)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("borrow against a running rental rolls back", func(t *testing.T) {
		s := settlementFixture()
		renter := int64(9)
		running := settleNow.Add(48 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, lend_limit_date FROM positions").
			WithArgs(s.PositionID).
			WillReturnRows(sqlmock.NewRows([]string{"state", "lend_limit_date"}).AddRow("ACTIVE", settleNow.Add(30*24*time.Hour)))
		mock.ExpectQuery("SELECT custodied, current_user_id, user_expiry FROM assets").
			WithArgs(s.Asset.Contract, s.Asset.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied", "current_user_id", "user_expiry"}).AddRow(true, renter, running))
		mock.ExpectRollback()

		err := repo.SettleRental(ctx, s, settleNow)
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("extension by the wrong renter is unauthorized", func(t *testing.T) {
		s := settlementFixture()
		s.Extension = true
		otherRenter := int64(9)
		running := settleNow.Add(48 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, lend_limit_date FROM positions").
			WithArgs(s.PositionID).
			WillReturnRows(sqlmock.NewRows([]string{"state", "lend_limit_date"}).AddRow("ACTIVE", settleNow.Add(30*24*time.Hour)))
		mock.ExpectQuery("SELECT custodied, current_user_id, user_expiry FROM assets").
			WithArgs(s.Asset.Contract, s.Asset.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied", "current_user_id", "user_expiry"}).AddRow(true, otherRenter, running))
		mock.ExpectRollback()

		err := repo.SettleRental(ctx, s, settleNow)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("extension computed against a stale expiry cannot rewind the grant", func(t *testing.T) {
		s := settlementFixture()
		s.Extension = true
		s.NewExpiry = settleNow.Add(2 * 24 * time.Hour)
		// A concurrent extension already moved the grant past the quoted
		// expiry before this settlement took the lock.
		committed := settleNow.Add(3 * 24 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, lend_limit_date FROM positions").
			WithArgs(s.PositionID).
			WillReturnRows(sqlmock.NewRows([]string{"state", "lend_limit_date"}).AddRow("ACTIVE", settleNow.Add(30*24*time.Hour)))
		mock.ExpectQuery("SELECT custodied, current_user_id, user_expiry FROM assets").
			WithArgs(s.Asset.Contract, s.Asset.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied", "current_user_id", "user_expiry"}).AddRow(true, s.RenterID, committed))
		mock.ExpectRollback()

		err := repo.SettleRental(ctx, s, settleNow)
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawn position conflicts", func(t *testing.T) {
		s := settlementFixture()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, lend_limit_date FROM positions").
			WithArgs(s.PositionID).
			WillReturnRows(sqlmock.NewRows([]string{"state", "lend_limit_date"}).AddRow("WITHDRAWN", settleNow.Add(30*24*time.Hour)))
		mock.ExpectRollback()

		err := repo.SettleRental(ctx, s, settleNow)
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithdrawPositionBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLedgerRepository(db)
	ctx := context.Background()

	t.Run("zeroes then pays inside one transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(430))
		mock.ExpectExec("UPDATE positions SET balance_cents = 0").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		var paidThrough int64
		paid, err := repo.WithdrawPositionBalance(ctx, 1, func(amountCents int64) error {
			paidThrough = amountCents
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(430), paid)
		assert.Equal(t, int64(430), paidThrough)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty balance is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(0))
		mock.ExpectRollback()

		paid, err := repo.WithdrawPositionBalance(ctx, 1, func(int64) error {
			t.Fatal("pay must not be invoked for an empty balance")
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(0), paid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("payout failure rolls the whole withdrawal back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(430))
		mock.ExpectExec("UPDATE positions SET balance_cents = 0").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		_, err := repo.WithdrawPositionBalance(ctx, 1, func(int64) error {
			return assert.AnError
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetAccumulator(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLedgerRepository(db)
	ctx := context.Background()

	t.Run("missing row reads as zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

		balance, err := repo.GetAccumulator(ctx, domain.BalanceClassBroker, 7)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("owner class has no accumulator", func(t *testing.T) {
		_, err := repo.GetAccumulator(ctx, domain.BalanceClassOwner, 7)
		assert.Error(t, err)
	})
}
