package service

import (
	"context"
	"fmt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/payment"
	"stakelend-backend/internal/repository"
)

type adminService struct {
	accounts repository.AccountRepository
	feeCfg   repository.FeeConfigRepository
	ledger   repository.LedgerRepository
	eng      *engine.Engine
	rail     payment.Rail
}

func NewAdminService(
	accounts repository.AccountRepository,
	feeCfg repository.FeeConfigRepository,
	ledger repository.LedgerRepository,
	eng *engine.Engine,
	rail payment.Rail,
) AdminService {
	return &adminService{
		accounts: accounts,
		feeCfg:   feeCfg,
		ledger:   ledger,
		eng:      eng,
		rail:     rail,
	}
}

// requireGovernance fails closed: any lookup problem reads as unauthorized.
func (s *adminService) requireGovernance(ctx context.Context, callerID int64) error {
	account, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%w: account %d", domain.ErrUnauthorized, callerID)
	}
	if account.Role != domain.AccountRoleGovernance {
		return fmt.Errorf("%w: account %d is not a governance account", domain.ErrUnauthorized, callerID)
	}
	return nil
}

func (s *adminService) GetFeeRates(ctx context.Context) (*domain.FeeRates, error) {
	return s.feeCfg.Current(ctx)
}

func (s *adminService) SetProtocolFee(ctx context.Context, callerID, permille int64) error {
	if err := s.requireGovernance(ctx, callerID); err != nil {
		return err
	}
	current, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	next := domain.FeeRates{
		ProtocolPermille: permille,
		BrokerPermille:   current.BrokerPermille,
		EffectiveFrom:    s.eng.Now(),
		UpdatedBy:        callerID,
	}
	if err := s.eng.ValidateRates(next); err != nil {
		return err
	}
	if err := s.feeCfg.Append(ctx, next); err != nil {
		return err
	}
	logger.Info("Protocol fee changed", "permille", permille, "updated_by", callerID)
	return nil
}

func (s *adminService) SetBrokerFee(ctx context.Context, callerID, permille int64) error {
	if err := s.requireGovernance(ctx, callerID); err != nil {
		return err
	}
	current, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	next := domain.FeeRates{
		ProtocolPermille: current.ProtocolPermille,
		BrokerPermille:   permille,
		EffectiveFrom:    s.eng.Now(),
		UpdatedBy:        callerID,
	}
	if err := s.eng.ValidateRates(next); err != nil {
		return err
	}
	if err := s.feeCfg.Append(ctx, next); err != nil {
		return err
	}
	logger.Info("Broker fee changed", "permille", permille, "updated_by", callerID)
	return nil
}

func (s *adminService) GetTreasuryBalance(ctx context.Context, callerID int64) (int64, error) {
	if err := s.requireGovernance(ctx, callerID); err != nil {
		return 0, err
	}
	return s.ledger.GetProtocolBalance(ctx)
}

func (s *adminService) WithdrawTreasury(ctx context.Context, callerID, payeeID int64) (int64, error) {
	if err := s.requireGovernance(ctx, callerID); err != nil {
		return 0, err
	}
	paid, err := s.ledger.WithdrawProtocol(ctx, func(amountCents int64) error {
		return s.rail.Payout(ctx, payeeID, amountCents, "protocol treasury payout")
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		logger.Info("Treasury paid out", "payee_id", payeeID, "paid_cents", paid, "by", callerID)
	}
	return paid, nil
}
