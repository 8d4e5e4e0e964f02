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

type positionRepository struct {
	db *sql.DB
}

func NewPositionRepository(db *sql.DB) repository.PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Stake(ctx context.Context, asset domain.AssetRef, cond domain.Condition, serial string, ownerID int64, now time.Time) (*domain.Position, *domain.Receipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var custodied bool
	err = tx.QueryRowContext(ctx,
		`SELECT custodied FROM assets WHERE contract = $1 AND token_id = $2 FOR UPDATE`,
		asset.Contract, asset.TokenID,
	).Scan(&custodied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrAssetNotFound
		}
		return nil, nil, fmt.Errorf("lock asset: %w", err)
	}
	if !custodied {
		return nil, nil, fmt.Errorf("%w: asset %s is not in custody", domain.ErrPolicyViolation, asset)
	}

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM positions WHERE contract = $1 AND token_id = $2 AND state = $3`,
		asset.Contract, asset.TokenID, domain.PositionStateActive,
	).Scan(&existing)
	if err == nil {
		return nil, nil, fmt.Errorf("%w: asset %s already staked as position %d", domain.ErrStateConflict, asset, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("check existing position: %w", err)
	}

	pos := &domain.Position{
		Asset:     asset,
		State:     domain.PositionStateActive,
		Condition: cond,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO positions (contract, token_id, fee_per_day_cents, lend_limit_date, minimum_period_days, affiliate_reward_permille, created_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_on`,
		asset.Contract, asset.TokenID, cond.FeePerDayCents, cond.LendLimitDate,
		cond.MinimumPeriodDays, cond.AffiliateRewardPermille, now,
	).Scan(&pos.ID, &pos.CreatedOn)
	if err != nil {
		return nil, nil, fmt.Errorf("insert position: %w", err)
	}

	rec := &domain.Receipt{
		Serial:         serial,
		PositionID:     pos.ID,
		OwnerAccountID: ownerID,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO receipts (serial, position_id, owner_account_id, created_on)
		 VALUES ($1, $2, $3, $4) RETURNING created_on`,
		serial, pos.ID, ownerID, now,
	).Scan(&rec.CreatedOn)
	if err != nil {
		return nil, nil, fmt.Errorf("insert receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return pos, rec, nil
}

const positionColumns = `id, contract, token_id, state, balance_cents, fee_per_day_cents,
	lend_limit_date, minimum_period_days, affiliate_reward_permille, created_on, withdrawn_on`

func scanPosition(row *sql.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(&p.ID, &p.Asset.Contract, &p.Asset.TokenID, &p.State, &p.BalanceCents,
		&p.Condition.FeePerDayCents, &p.Condition.LendLimitDate, &p.Condition.MinimumPeriodDays,
		&p.Condition.AffiliateRewardPermille, &p.CreatedOn, &p.WithdrawnOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("scan position: %w", err)
	}
	return &p, nil
}

func (r *positionRepository) GetByID(ctx context.Context, id int64) (*domain.Position, error) {
	return scanPosition(r.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id))
}

func (r *positionRepository) GetActiveByAsset(ctx context.Context, asset domain.AssetRef) (*domain.Position, error) {
	return scanPosition(r.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE contract = $1 AND token_id = $2 AND state = $3`,
		asset.Contract, asset.TokenID, domain.PositionStateActive))
}

func (r *positionRepository) UpdateCondition(ctx context.Context, id int64, cond domain.Condition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var state string
	var contract string
	var tokenID int64
	err = tx.QueryRowContext(ctx,
		`SELECT state, contract, token_id FROM positions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&state, &contract, &tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPositionNotFound
		}
		return fmt.Errorf("lock position: %w", err)
	}
	if state != string(domain.PositionStateActive) {
		return fmt.Errorf("%w: position %d is withdrawn", domain.ErrPolicyViolation, id)
	}

	// The lend window cannot be shortened under an active renter.
	var userExpiry *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT user_expiry FROM assets WHERE contract = $1 AND token_id = $2 FOR UPDATE`,
		contract, tokenID,
	).Scan(&userExpiry)
	if err != nil {
		return fmt.Errorf("lock asset: %w", err)
	}
	if userExpiry != nil && !cond.LendLimitDate.After(*userExpiry) {
		return fmt.Errorf("%w: lend limit %s must be after the current rental expiry %s",
			domain.ErrPolicyViolation, cond.LendLimitDate.Format(time.RFC3339), userExpiry.Format(time.RFC3339))
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE positions
		 SET fee_per_day_cents = $2, lend_limit_date = $3, minimum_period_days = $4, affiliate_reward_permille = $5
		 WHERE id = $1`,
		id, cond.FeePerDayCents, cond.LendLimitDate, cond.MinimumPeriodDays, cond.AffiliateRewardPermille,
	)
	if err != nil {
		return fmt.Errorf("update condition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *positionRepository) Withdraw(ctx context.Context, id int64, now time.Time, pay func(balanceCents int64) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var state, contract string
	var tokenID, balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT state, contract, token_id, balance_cents FROM positions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&state, &contract, &tokenID, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrPositionNotFound
		}
		return 0, fmt.Errorf("lock position: %w", err)
	}
	if state != string(domain.PositionStateActive) {
		return 0, fmt.Errorf("%w: position %d already withdrawn", domain.ErrPolicyViolation, id)
	}

	var userExpiry *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT user_expiry FROM assets WHERE contract = $1 AND token_id = $2 FOR UPDATE`,
		contract, tokenID,
	).Scan(&userExpiry)
	if err != nil {
		return 0, fmt.Errorf("lock asset: %w", err)
	}
	if userExpiry != nil && !userExpiry.Before(now) {
		return 0, fmt.Errorf("%w: rental runs until %s", domain.ErrStateConflict, userExpiry.Format(time.RFC3339))
	}

	// Mark first, burn the receipt, only then let value leave. The position
	// is terminal before any external call happens.
	_, err = tx.ExecContext(ctx,
		`UPDATE positions SET state = $2, withdrawn_on = $3, balance_cents = 0 WHERE id = $1`,
		id, domain.PositionStateWithdrawn, now,
	)
	if err != nil {
		return 0, fmt.Errorf("mark withdrawn: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE position_id = $1`, id); err != nil {
		return 0, fmt.Errorf("burn receipt: %w", err)
	}

	if balance > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (class, position_id, amount_cents, type, memo, created_on)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			domain.BalanceClassOwner, id, -balance, domain.EntryTypePayoutDebit,
			fmt.Sprintf("residual balance payout on withdrawal of position %d", id), now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert payout entry: %w", err)
		}
		if err := pay(balance); err != nil {
			return 0, fmt.Errorf("payout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

func (r *positionRepository) ListByContract(ctx context.Context, contract string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE contract = $1 AND state = $2 ORDER BY id`,
		contract, domain.PositionStateActive,
	)
	if err != nil {
		return nil, fmt.Errorf("select positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.Asset.Contract, &p.Asset.TokenID, &p.State, &p.BalanceCents,
			&p.Condition.FeePerDayCents, &p.Condition.LendLimitDate, &p.Condition.MinimumPeriodDays,
			&p.Condition.AffiliateRewardPermille, &p.CreatedOn, &p.WithdrawnOn); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
