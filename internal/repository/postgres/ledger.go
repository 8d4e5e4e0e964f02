package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

// SettleRental applies a quoted rental in one transaction: it re-checks
// availability under row locks, credits all four balance classes, writes the
// audit entries, and records the usage grant. Either everything lands or
// nothing does.
func (r *ledgerRepository) SettleRental(ctx context.Context, s *domain.RentalSettlement, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var state string
	var lendLimit time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT state, lend_limit_date FROM positions WHERE id = $1 FOR UPDATE`, s.PositionID,
	).Scan(&state, &lendLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPositionNotFound
		}
		return fmt.Errorf("lock position: %w", err)
	}
	if state != string(domain.PositionStateActive) {
		return fmt.Errorf("%w: position %d is withdrawn", domain.ErrStateConflict, s.PositionID)
	}
	if !s.NewExpiry.Before(lendLimit) {
		return fmt.Errorf("%w: expiry %s is not before the lend limit %s",
			domain.ErrPolicyViolation, s.NewExpiry.Format(time.RFC3339), lendLimit.Format(time.RFC3339))
	}

	var custodied bool
	var currentUser *int64
	var userExpiry *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT custodied, current_user_id, user_expiry FROM assets WHERE contract = $1 AND token_id = $2 FOR UPDATE`,
		s.Asset.Contract, s.Asset.TokenID,
	).Scan(&custodied, &currentUser, &userExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAssetNotFound
		}
		return fmt.Errorf("lock asset: %w", err)
	}
	if !custodied {
		return fmt.Errorf("%w: asset %s left custody", domain.ErrStateConflict, s.Asset)
	}

	rented := currentUser != nil && userExpiry != nil && !userExpiry.Before(now)
	if s.Extension {
		if !rented {
			return fmt.Errorf("%w: no running rental on asset %s to extend", domain.ErrStateConflict, s.Asset)
		}
		if *currentUser != s.RenterID {
			return fmt.Errorf("%w: account %d is not the current renter of asset %s",
				domain.ErrUnauthorized, s.RenterID, s.Asset)
		}
		// An extension computed against a stale expiry must not rewind the
		// grant below what is already committed.
		if !s.NewExpiry.After(*userExpiry) {
			return fmt.Errorf("%w: grant on asset %s already runs until %s",
				domain.ErrStateConflict, s.Asset, userExpiry.Format(time.RFC3339))
		}
	} else if rented {
		return fmt.Errorf("%w: asset %s is rented until %s",
			domain.ErrStateConflict, s.Asset, userExpiry.Format(time.RFC3339))
	}

	entryType := domain.EntryTypeRentalCredit
	if s.Extension {
		entryType = domain.EntryTypeExtensionCredit
	}

	if s.OwnerCents > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE positions SET balance_cents = balance_cents + $2 WHERE id = $1`,
			s.PositionID, s.OwnerCents,
		); err != nil {
			return fmt.Errorf("credit owner balance: %w", err)
		}
		if err := insertEntry(ctx, tx, domain.BalanceClassOwner, nil, &s.PositionID,
			s.OwnerCents, entryType, ownerMemo(s), now); err != nil {
			return err
		}
	}
	if s.ProtocolCents > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE protocol_treasury SET balance_cents = balance_cents + $1 WHERE id = 1`,
			s.ProtocolCents,
		); err != nil {
			return fmt.Errorf("credit treasury: %w", err)
		}
		if err := insertEntry(ctx, tx, domain.BalanceClassProtocol, nil, &s.PositionID,
			s.ProtocolCents, entryType, "protocol share", now); err != nil {
			return err
		}
	}
	if s.BrokerCents > 0 && s.BrokerID != nil {
		if err := creditAccumulator(ctx, tx, "broker_balances", *s.BrokerID, s.BrokerCents); err != nil {
			return err
		}
		if err := insertEntry(ctx, tx, domain.BalanceClassBroker, s.BrokerID, &s.PositionID,
			s.BrokerCents, entryType, "broker share", now); err != nil {
			return err
		}
	}
	if s.AffiliateCents > 0 && s.AffiliateID != nil {
		if err := creditAccumulator(ctx, tx, "affiliate_balances", *s.AffiliateID, s.AffiliateCents); err != nil {
			return err
		}
		if err := insertEntry(ctx, tx, domain.BalanceClassAffiliate, s.AffiliateID, &s.PositionID,
			s.AffiliateCents, entryType, "affiliate reward", now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assets SET current_user_id = $3, user_expiry = $4 WHERE contract = $1 AND token_id = $2`,
		s.Asset.Contract, s.Asset.TokenID, s.RenterID, s.NewExpiry,
	); err != nil {
		return fmt.Errorf("record grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func ownerMemo(s *domain.RentalSettlement) string {
	if s.Extension {
		return fmt.Sprintf("extension by account %d", s.RenterID)
	}
	return fmt.Sprintf("rental by account %d", s.RenterID)
}

func insertEntry(ctx context.Context, tx *sql.Tx, class domain.BalanceClass, accountID, positionID *int64, amount int64, entryType domain.EntryType, memo string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (class, account_id, position_id, amount_cents, type, memo, created_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		class, accountID, positionID, amount, entryType, memo, now,
	)
	if err != nil {
		return fmt.Errorf("insert %s entry: %w", class, err)
	}
	return nil
}

func creditAccumulator(ctx context.Context, tx *sql.Tx, table string, accountID, amount int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (account_id, balance_cents) VALUES ($1, $2)
		 ON CONFLICT (account_id) DO UPDATE SET balance_cents = `+table+`.balance_cents + EXCLUDED.balance_cents`,
		accountID, amount,
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", table, err)
	}
	return nil
}

// WithdrawPositionBalance zeroes the owner balance and hands the amount to
// pay inside the same transaction. A zero balance is a no-op, so repeated
// calls are harmless.
func (r *ledgerRepository) WithdrawPositionBalance(ctx context.Context, positionID int64, pay func(amountCents int64) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM positions WHERE id = $1 FOR UPDATE`, positionID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrPositionNotFound
		}
		return 0, fmt.Errorf("lock position: %w", err)
	}
	if balance == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE positions SET balance_cents = 0 WHERE id = $1`, positionID,
	); err != nil {
		return 0, fmt.Errorf("zero balance: %w", err)
	}
	now := time.Now().UTC()
	if err := insertEntry(ctx, tx, domain.BalanceClassOwner, nil, &positionID,
		-balance, domain.EntryTypePayoutDebit, "owner balance payout", now); err != nil {
		return 0, err
	}
	if err := pay(balance); err != nil {
		return 0, fmt.Errorf("payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

func accumulatorTable(class domain.BalanceClass) (string, error) {
	switch class {
	case domain.BalanceClassBroker:
		return "broker_balances", nil
	case domain.BalanceClassAffiliate:
		return "affiliate_balances", nil
	default:
		return "", fmt.Errorf("class %s has no accumulator table", class)
	}
}

func (r *ledgerRepository) WithdrawAccumulator(ctx context.Context, class domain.BalanceClass, accountID int64, pay func(amountCents int64) error) (int64, error) {
	table, err := accumulatorTable(class)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM `+table+` WHERE account_id = $1 FOR UPDATE`, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock %s row: %w", table, err)
	}
	if balance == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET balance_cents = 0 WHERE account_id = $1`, accountID,
	); err != nil {
		return 0, fmt.Errorf("zero %s balance: %w", table, err)
	}
	now := time.Now().UTC()
	if err := insertEntry(ctx, tx, class, &accountID, nil,
		-balance, domain.EntryTypePayoutDebit, string(class)+" balance payout", now); err != nil {
		return 0, err
	}
	if err := pay(balance); err != nil {
		return 0, fmt.Errorf("payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

func (r *ledgerRepository) WithdrawProtocol(ctx context.Context, pay func(amountCents int64) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM protocol_treasury WHERE id = 1 FOR UPDATE`,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("lock treasury: %w", err)
	}
	if balance == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE protocol_treasury SET balance_cents = 0 WHERE id = 1`,
	); err != nil {
		return 0, fmt.Errorf("zero treasury: %w", err)
	}
	now := time.Now().UTC()
	if err := insertEntry(ctx, tx, domain.BalanceClassProtocol, nil, nil,
		-balance, domain.EntryTypePayoutDebit, "treasury payout", now); err != nil {
		return 0, err
	}
	if err := pay(balance); err != nil {
		return 0, fmt.Errorf("payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

func (r *ledgerRepository) GetAccumulator(ctx context.Context, class domain.BalanceClass, accountID int64) (int64, error) {
	table, err := accumulatorTable(class)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT balance_cents FROM `+table+` WHERE account_id = $1), 0)`, accountID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("select %s balance: %w", table, err)
	}
	return balance, nil
}

func (r *ledgerRepository) GetProtocolBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM protocol_treasury WHERE id = 1`,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("select treasury balance: %w", err)
	}
	return balance, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, accountID, positionID *int64, limit, offset int32) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, class, account_id, position_id, amount_cents, type, memo, created_on
		 FROM ledger_entries
		 WHERE ($1::BIGINT IS NULL OR account_id = $1)
		   AND ($2::BIGINT IS NULL OR position_id = $2)
		 ORDER BY id DESC LIMIT $3 OFFSET $4`,
		accountID, positionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Class, &e.AccountID, &e.PositionID,
			&e.AmountCents, &e.Type, &e.Memo, &e.CreatedOn); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *ledgerRepository) ListAccumulatorsAbove(ctx context.Context, class domain.BalanceClass, thresholdCents int64) (map[int64]int64, error) {
	table, err := accumulatorTable(class)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, balance_cents FROM `+table+` WHERE balance_cents >= $1`, thresholdCents,
	)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var accountID, balance int64
		if err := rows.Scan(&accountID, &balance); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out[accountID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *ledgerRepository) TakeSnapshot(ctx context.Context, now time.Time) (*domain.BalanceSnapshot, error) {
	snap := &domain.BalanceSnapshot{TakenOn: now}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO balance_snapshots (owners_cents, protocol_cents, brokers_cents, affiliates_cents, taken_on)
		 SELECT
		   (SELECT COALESCE(SUM(balance_cents), 0) FROM positions WHERE state = $1),
		   (SELECT balance_cents FROM protocol_treasury WHERE id = 1),
		   (SELECT COALESCE(SUM(balance_cents), 0) FROM broker_balances),
		   (SELECT COALESCE(SUM(balance_cents), 0) FROM affiliate_balances),
		   $2
		 RETURNING id, owners_cents, protocol_cents, brokers_cents, affiliates_cents`,
		domain.PositionStateActive, now,
	).Scan(&snap.ID, &snap.OwnersCents, &snap.ProtocolCents, &snap.BrokersCents, &snap.AffiliatesCents)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}
