package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

type receiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) repository.ReceiptRepository {
	return &receiptRepository{db: db}
}

func scanReceipt(row *sql.Row) (*domain.Receipt, error) {
	var rec domain.Receipt
	err := row.Scan(&rec.Serial, &rec.PositionID, &rec.OwnerAccountID, &rec.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	return &rec, nil
}

func (r *receiptRepository) GetByPosition(ctx context.Context, positionID int64) (*domain.Receipt, error) {
	return scanReceipt(r.db.QueryRowContext(ctx,
		`SELECT serial, position_id, owner_account_id, created_on FROM receipts WHERE position_id = $1`,
		positionID))
}

func (r *receiptRepository) GetBySerial(ctx context.Context, serial string) (*domain.Receipt, error) {
	return scanReceipt(r.db.QueryRowContext(ctx,
		`SELECT serial, position_id, owner_account_id, created_on FROM receipts WHERE serial = $1`,
		serial))
}

func (r *receiptRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT serial, position_id, owner_account_id, created_on
		 FROM receipts WHERE owner_account_id = $1 ORDER BY created_on, serial`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}
	defer rows.Close()

	var out []domain.Receipt
	for rows.Next() {
		var rec domain.Receipt
		if err := rows.Scan(&rec.Serial, &rec.PositionID, &rec.OwnerAccountID, &rec.CreatedOn); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Transfer moves the receipt only if fromID still holds it. The single
// guarded UPDATE makes concurrent transfers of the same serial race-safe.
func (r *receiptRepository) Transfer(ctx context.Context, serial string, fromID, toID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET owner_account_id = $3 WHERE serial = $1 AND owner_account_id = $2`,
		serial, fromID, toID,
	)
	if err != nil {
		return fmt.Errorf("transfer receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var current int64
		err := r.db.QueryRowContext(ctx,
			`SELECT owner_account_id FROM receipts WHERE serial = $1`, serial,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReceiptNotFound
		}
		if err != nil {
			return fmt.Errorf("check receipt: %w", err)
		}
		return fmt.Errorf("%w: receipt %s is not held by account %d", domain.ErrUnauthorized, serial, fromID)
	}
	return nil
}
