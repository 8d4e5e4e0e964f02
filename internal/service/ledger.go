package service

import (
	"context"
	"fmt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/payment"
	"stakelend-backend/internal/repository"
)

type ledgerService struct {
	ledger    repository.LedgerRepository
	positions repository.PositionRepository
	rail      payment.Rail
}

func NewLedgerService(ledger repository.LedgerRepository, positions repository.PositionRepository, rail payment.Rail) LedgerService {
	return &ledgerService{ledger: ledger, positions: positions, rail: rail}
}

func (s *ledgerService) GetPositionBalance(ctx context.Context, positionID int64) (int64, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return 0, err
	}
	return pos.BalanceCents, nil
}

func (s *ledgerService) GetBrokerBalance(ctx context.Context, accountID int64) (int64, error) {
	return s.ledger.GetAccumulator(ctx, domain.BalanceClassBroker, accountID)
}

func (s *ledgerService) GetAffiliateBalance(ctx context.Context, accountID int64) (int64, error) {
	return s.ledger.GetAccumulator(ctx, domain.BalanceClassAffiliate, accountID)
}

func (s *ledgerService) withdrawAccumulator(ctx context.Context, class domain.BalanceClass, accountID int64) (int64, error) {
	paid, err := s.ledger.WithdrawAccumulator(ctx, class, accountID, func(amountCents int64) error {
		return s.rail.Payout(ctx, accountID, amountCents, fmt.Sprintf("%s balance payout", class))
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		logger.Info("Accumulator paid out", "class", class, "account_id", accountID, "paid_cents", paid)
	}
	return paid, nil
}

func (s *ledgerService) WithdrawBrokerBalance(ctx context.Context, accountID int64) (int64, error) {
	return s.withdrawAccumulator(ctx, domain.BalanceClassBroker, accountID)
}

func (s *ledgerService) WithdrawAffiliateBalance(ctx context.Context, accountID int64) (int64, error) {
	return s.withdrawAccumulator(ctx, domain.BalanceClassAffiliate, accountID)
}

func (s *ledgerService) ListEntries(ctx context.Context, accountID, positionID *int64, limit, offset int32) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.ListEntries(ctx, accountID, positionID, limit, offset)
}
