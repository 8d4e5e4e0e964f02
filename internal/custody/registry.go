package custody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stakelend-backend/internal/domain"
)

// Registry is the production AssetCustody, backed by the same Postgres
// database as the ledger so rental settlement can join grant updates into
// its transaction.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Register(ctx context.Context, ref domain.AssetRef, ownerID int64) error {
	var existingOwner int64
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_account_id FROM assets WHERE contract = $1 AND token_id = $2`,
		ref.Contract, ref.TokenID,
	).Scan(&existingOwner)
	if err == nil {
		if existingOwner != ownerID {
			return fmt.Errorf("%w: asset %s is registered to another owner", domain.ErrUnauthorized, ref)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("select asset: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO assets (contract, token_id, owner_account_id) VALUES ($1, $2, $3)`,
		ref.Contract, ref.TokenID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, ref domain.AssetRef) (*domain.Asset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT owner_account_id, custodied, custody_approved, current_user_id, user_expiry
		 FROM assets WHERE contract = $1 AND token_id = $2`,
		ref.Contract, ref.TokenID,
	)
	a := &domain.Asset{Ref: ref}
	err := row.Scan(&a.OwnerAccountID, &a.Custodied, &a.CustodyApproved, &a.CurrentUserID, &a.UserExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

func (r *Registry) OwnerOf(ctx context.Context, ref domain.AssetRef) (int64, error) {
	a, err := r.Get(ctx, ref)
	if err != nil {
		return 0, err
	}
	return a.OwnerAccountID, nil
}

func (r *Registry) SetCustodyApproval(ctx context.Context, ref domain.AssetRef, ownerID int64, approved bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET custody_approved = $3
		 WHERE contract = $1 AND token_id = $2 AND owner_account_id = $4 AND NOT custodied`,
		ref.Contract, ref.TokenID, approved, ownerID,
	)
	if err != nil {
		return fmt.Errorf("set custody approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set custody approval: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: asset %s not owned by caller or already custodied", domain.ErrUnauthorized, ref)
	}
	return nil
}

func (r *Registry) IsCustodyApproved(ctx context.Context, ref domain.AssetRef) (bool, error) {
	a, err := r.Get(ctx, ref)
	if err != nil {
		return false, err
	}
	return a.CustodyApproved, nil
}

func (r *Registry) SetOperatorApproval(ctx context.Context, ownerID, operatorID int64, approved bool) error {
	var err error
	if approved {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO operator_approvals (owner_account_id, operator_account_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			ownerID, operatorID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM operator_approvals WHERE owner_account_id = $1 AND operator_account_id = $2`,
			ownerID, operatorID,
		)
	}
	if err != nil {
		return fmt.Errorf("set operator approval: %w", err)
	}
	return nil
}

func (r *Registry) IsApprovedOperator(ctx context.Context, ownerID, operatorID int64) (bool, error) {
	var approved bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM operator_approvals WHERE owner_account_id = $1 AND operator_account_id = $2
		 )`,
		ownerID, operatorID,
	).Scan(&approved)
	if err != nil {
		return false, fmt.Errorf("is approved operator: %w", err)
	}
	return approved, nil
}

func (r *Registry) TransferIn(ctx context.Context, ref domain.AssetRef) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET custodied = TRUE
		 WHERE contract = $1 AND token_id = $2 AND custody_approved AND NOT custodied`,
		ref.Contract, ref.TokenID,
	)
	if err != nil {
		return fmt.Errorf("transfer in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer in: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: asset %s not approved for custody or already custodied", domain.ErrUnauthorized, ref)
	}
	return nil
}

func (r *Registry) TransferOut(ctx context.Context, ref domain.AssetRef, toID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets
		 SET custodied = FALSE, custody_approved = FALSE, owner_account_id = $3,
		     current_user_id = NULL, user_expiry = NULL
		 WHERE contract = $1 AND token_id = $2 AND custodied`,
		ref.Contract, ref.TokenID, toID,
	)
	if err != nil {
		return fmt.Errorf("transfer out: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer out: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transfer out: asset %s is not in custody", ref)
	}
	return nil
}

func (r *Registry) CurrentUser(ctx context.Context, ref domain.AssetRef) (*int64, error) {
	a, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.CurrentUserID, nil
}

func (r *Registry) CurrentUserExpiry(ctx context.Context, ref domain.AssetRef) (*time.Time, error) {
	a, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.UserExpiry, nil
}

func (r *Registry) ListExpiredGrants(ctx context.Context, asOf time.Time) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT contract, token_id, owner_account_id, custodied, custody_approved, current_user_id, user_expiry
		 FROM assets
		 WHERE custodied AND current_user_id IS NOT NULL AND user_expiry < $1`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired grants: %w", err)
	}
	defer rows.Close()

	var out []domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.Ref.Contract, &a.Ref.TokenID, &a.OwnerAccountID, &a.Custodied,
			&a.CustodyApproved, &a.CurrentUserID, &a.UserExpiry); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *Registry) ClearGrant(ctx context.Context, ref domain.AssetRef, asOf time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE assets SET current_user_id = NULL, user_expiry = NULL
		 WHERE contract = $1 AND token_id = $2 AND user_expiry < $3`,
		ref.Contract, ref.TokenID, asOf,
	)
	if err != nil {
		return fmt.Errorf("clear grant: %w", err)
	}
	return nil
}
