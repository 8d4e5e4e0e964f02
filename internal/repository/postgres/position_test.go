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

func TestPositionWithdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPositionRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("marks withdrawn, burns the receipt and pays the balance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, contract, token_id, balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"state", "contract", "token_id", "balance_cents"}).
				AddRow("ACTIVE", "vault-a", 42, 120))
		mock.ExpectQuery("SELECT user_expiry FROM assets").
			WithArgs("vault-a", int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"user_expiry"}).AddRow(nil))
		mock.ExpectExec("UPDATE positions SET state").
			WithArgs(int64(1), domain.PositionStateWithdrawn, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM receipts").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		var paidThrough int64
		balance, err := repo.Withdraw(ctx, 1, now, func(balanceCents int64) error {
			paidThrough = balanceCents
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(120), balance)
		assert.Equal(t, int64(120), paidThrough)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocked while a grant is running", func(t *testing.T) {
		running := now.Add(48 * time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, contract, token_id, balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"state", "contract", "token_id", "balance_cents"}).
				AddRow("ACTIVE", "vault-a", 42, 120))
		mock.ExpectQuery("SELECT user_expiry FROM assets").
			WithArgs("vault-a", int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"user_expiry"}).AddRow(running))
		mock.ExpectRollback()

		_, err := repo.Withdraw(ctx, 1, now, func(int64) error { return nil })
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("double withdrawal is a policy violation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT state, contract, token_id, balance_cents FROM positions").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"state", "contract", "token_id", "balance_cents"}).
				AddRow("WITHDRAWN", "vault-a", 42, 0))
		mock.ExpectRollback()

		_, err := repo.Withdraw(ctx, 1, now, func(int64) error { return nil })
		assert.ErrorIs(t, err, domain.ErrPolicyViolation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPositionGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPositionRepository(db)
	ctx := context.Background()

	t.Run("unknown id maps to not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM positions WHERE id").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrPositionNotFound)
	})
}

func TestPositionStake(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPositionRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}
	cond := domain.Condition{
		FeePerDayCents:          10,
		LendLimitDate:           now.Add(30 * 24 * time.Hour),
		AffiliateRewardPermille: 100,
	}

	t.Run("uncustodied asset is rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT custodied FROM assets").
			WithArgs(ref.Contract, ref.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied"}).AddRow(false))
		mock.ExpectRollback()

		_, _, err := repo.Stake(ctx, ref, cond, "serial-1", 1, now)
		assert.ErrorIs(t, err, domain.ErrPolicyViolation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second active position on the same asset conflicts", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT custodied FROM assets").
			WithArgs(ref.Contract, ref.TokenID).
			WillReturnRows(sqlmock.NewRows([]string{"custodied"}).AddRow(true))
		mock.ExpectQuery("SELECT id FROM positions").
			WithArgs(ref.Contract, ref.TokenID, domain.PositionStateActive).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectRollback()

		_, _, err := repo.Stake(ctx, ref, cond, "serial-1", 1, now)
		assert.ErrorIs(t, err, domain.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
