package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

type feeConfigRepository struct {
	db *sql.DB
}

func NewFeeConfigRepository(db *sql.DB) repository.FeeConfigRepository {
	return &feeConfigRepository{db: db}
}

// Current returns the latest fee configuration. Rows are append-only, so the
// most recent row wins.
func (r *feeConfigRepository) Current(ctx context.Context) (*domain.FeeRates, error) {
	var rates domain.FeeRates
	err := r.db.QueryRowContext(ctx,
		`SELECT protocol_permille, broker_permille, effective_from, updated_by
		 FROM fee_config ORDER BY effective_from DESC, id DESC LIMIT 1`,
	).Scan(&rates.ProtocolPermille, &rates.BrokerPermille, &rates.EffectiveFrom, &rates.UpdatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fee configuration is not initialized")
		}
		return nil, fmt.Errorf("select fee config: %w", err)
	}
	return &rates, nil
}

func (r *feeConfigRepository) Append(ctx context.Context, rates domain.FeeRates) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_config (protocol_permille, broker_permille, effective_from, updated_by)
		 VALUES ($1, $2, $3, $4)`,
		rates.ProtocolPermille, rates.BrokerPermille, rates.EffectiveFrom, rates.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert fee config: %w", err)
	}
	return nil
}

// EnsureDefault seeds the initial rates on an empty table so a fresh
// deployment starts with known fees.
func (r *feeConfigRepository) EnsureDefault(ctx context.Context, rates domain.FeeRates) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_config (protocol_permille, broker_permille, effective_from, updated_by)
		 SELECT $1, $2, $3, $4
		 WHERE NOT EXISTS (SELECT 1 FROM fee_config)`,
		rates.ProtocolPermille, rates.BrokerPermille, rates.EffectiveFrom, rates.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("seed fee config: %w", err)
	}
	return nil
}
