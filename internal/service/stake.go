package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/payment"
	"stakelend-backend/internal/repository"
)

type stakeService struct {
	registry  custody.AssetCustody
	positions repository.PositionRepository
	receipts  repository.ReceiptRepository
	ledger    repository.LedgerRepository
	feeCfg    repository.FeeConfigRepository
	eng       *engine.Engine
	rail      payment.Rail
}

func NewStakeService(
	registry custody.AssetCustody,
	positions repository.PositionRepository,
	receipts repository.ReceiptRepository,
	ledger repository.LedgerRepository,
	feeCfg repository.FeeConfigRepository,
	eng *engine.Engine,
	rail payment.Rail,
) StakeService {
	return &stakeService{
		registry:  registry,
		positions: positions,
		receipts:  receipts,
		ledger:    ledger,
		feeCfg:    feeCfg,
		eng:       eng,
		rail:      rail,
	}
}

// requireReceipt loads the receipt for a position and checks the caller
// holds it. All owner-side operations authorize through this single gate.
func (s *stakeService) requireReceipt(ctx context.Context, positionID, callerID int64) (*domain.Receipt, error) {
	rec, err := s.receipts.GetByPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerAccountID != callerID {
		return nil, fmt.Errorf("%w: account %d does not hold the receipt for position %d",
			domain.ErrUnauthorized, callerID, positionID)
	}
	return rec, nil
}

// requireAssetAuthority resolves the asset owner and admits the owner or an
// approved operator. Returns the owner id so delegate calls still act on the
// owner's behalf.
func (s *stakeService) requireAssetAuthority(ctx context.Context, ref domain.AssetRef, callerID int64) (int64, error) {
	ownerID, err := s.registry.OwnerOf(ctx, ref)
	if err != nil {
		return 0, err
	}
	if ownerID == callerID {
		return ownerID, nil
	}
	approved, err := s.registry.IsApprovedOperator(ctx, ownerID, callerID)
	if err != nil {
		return 0, err
	}
	if !approved {
		return 0, fmt.Errorf("%w: account %d is neither owner nor approved operator of asset %s",
			domain.ErrUnauthorized, callerID, ref)
	}
	return ownerID, nil
}

func (s *stakeService) RegisterAsset(ctx context.Context, ref domain.AssetRef, ownerID int64) error {
	return s.registry.Register(ctx, ref, ownerID)
}

func (s *stakeService) SetOperatorApproval(ctx context.Context, callerID, operatorID int64, approved bool) error {
	if callerID == operatorID {
		return fmt.Errorf("%w: cannot set operator approval for self", domain.ErrPolicyViolation)
	}
	return s.registry.SetOperatorApproval(ctx, callerID, operatorID, approved)
}

func (s *stakeService) ApproveCustody(ctx context.Context, callerID int64, ref domain.AssetRef, approved bool) error {
	ownerID, err := s.requireAssetAuthority(ctx, ref, callerID)
	if err != nil {
		return err
	}
	return s.registry.SetCustodyApproval(ctx, ref, ownerID, approved)
}

func (s *stakeService) Stake(ctx context.Context, callerID int64, ref domain.AssetRef, cond domain.Condition) (*domain.Position, *domain.Receipt, error) {
	ownerID, err := s.requireAssetAuthority(ctx, ref, callerID)
	if err != nil {
		return nil, nil, err
	}
	approved, err := s.registry.IsCustodyApproved(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !approved {
		return nil, nil, fmt.Errorf("%w: custody of asset %s was not approved", domain.ErrUnauthorized, ref)
	}

	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return nil, nil, err
	}
	if !cond.LendLimitDate.After(s.eng.Now()) {
		return nil, nil, fmt.Errorf("%w: lend limit date must be in the future", domain.ErrPolicyViolation)
	}

	if err := s.registry.TransferIn(ctx, ref); err != nil {
		return nil, nil, err
	}

	pos, rec, err := s.positions.Stake(ctx, ref, cond, uuid.New().String(), ownerID, s.eng.Now())
	if err != nil {
		// Hand the asset back so a failed stake never strands it in custody.
		if outErr := s.registry.TransferOut(ctx, ref, ownerID); outErr != nil {
			logger.Error("Failed to release custody after failed stake", "asset", ref.String(), "error", outErr)
		}
		return nil, nil, err
	}

	logger.Info("Asset staked", "asset", ref.String(), "position_id", pos.ID, "owner_id", ownerID)
	return pos, rec, nil
}

func (s *stakeService) SetCondition(ctx context.Context, callerID, positionID int64, cond domain.Condition) error {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return err
	}
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return err
	}
	return s.positions.UpdateCondition(ctx, positionID, cond)
}

// currentCondition loads the condition for a field-level change after the
// receipt check has passed.
func (s *stakeService) currentCondition(ctx context.Context, positionID int64) (domain.Condition, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.Condition{}, err
	}
	return pos.Condition, nil
}

func (s *stakeService) ChangeFeePerDay(ctx context.Context, callerID, positionID, feePerDayCents int64) error {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return err
	}
	cond, err := s.currentCondition(ctx, positionID)
	if err != nil {
		return err
	}
	cond.FeePerDayCents = feePerDayCents
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return err
	}
	return s.positions.UpdateCondition(ctx, positionID, cond)
}

func (s *stakeService) ChangeLendLimitDate(ctx context.Context, callerID, positionID int64, limit time.Time) error {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return err
	}
	cond, err := s.currentCondition(ctx, positionID)
	if err != nil {
		return err
	}
	cond.LendLimitDate = limit
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return err
	}
	return s.positions.UpdateCondition(ctx, positionID, cond)
}

func (s *stakeService) ChangeMinimumPeriod(ctx context.Context, callerID, positionID, days int64) error {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return err
	}
	cond, err := s.currentCondition(ctx, positionID)
	if err != nil {
		return err
	}
	cond.MinimumPeriodDays = days
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return err
	}
	return s.positions.UpdateCondition(ctx, positionID, cond)
}

func (s *stakeService) ChangeAffiliateReward(ctx context.Context, callerID, positionID, permille int64) error {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return err
	}
	cond, err := s.currentCondition(ctx, positionID)
	if err != nil {
		return err
	}
	cond.AffiliateRewardPermille = permille
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return err
	}
	if err := s.eng.ValidateCondition(cond, *rates); err != nil {
		return err
	}
	return s.positions.UpdateCondition(ctx, positionID, cond)
}

func (s *stakeService) WithdrawAsset(ctx context.Context, callerID, positionID int64) (int64, error) {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return 0, err
	}
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return 0, err
	}

	paid, err := s.positions.Withdraw(ctx, positionID, s.eng.Now(), func(balanceCents int64) error {
		return s.rail.Payout(ctx, callerID, balanceCents,
			fmt.Sprintf("residual balance for position %d", positionID))
	})
	if err != nil {
		return 0, err
	}

	if err := s.registry.TransferOut(ctx, pos.Asset, callerID); err != nil {
		// The position is already closed; custody release must not be lost.
		logger.Error("Failed to release custody after withdrawal", "asset", pos.Asset.String(), "error", err)
		return paid, err
	}

	logger.Info("Position withdrawn", "position_id", positionID, "paid_cents", paid)
	return paid, nil
}

func (s *stakeService) WithdrawBalance(ctx context.Context, callerID, positionID int64) (int64, error) {
	if _, err := s.requireReceipt(ctx, positionID, callerID); err != nil {
		return 0, err
	}
	paid, err := s.ledger.WithdrawPositionBalance(ctx, positionID, func(amountCents int64) error {
		return s.rail.Payout(ctx, callerID, amountCents,
			fmt.Sprintf("earnings for position %d", positionID))
	})
	if err != nil {
		return 0, err
	}
	if paid > 0 {
		logger.Info("Position balance paid out", "position_id", positionID, "paid_cents", paid)
	}
	return paid, nil
}

func (s *stakeService) TransferReceipt(ctx context.Context, callerID int64, serial string, toID int64) error {
	return s.receipts.Transfer(ctx, serial, callerID, toID)
}

func (s *stakeService) GetPosition(ctx context.Context, positionID int64) (*domain.Position, error) {
	return s.positions.GetByID(ctx, positionID)
}

func (s *stakeService) GetPositionByAsset(ctx context.Context, ref domain.AssetRef) (*domain.Position, error) {
	return s.positions.GetActiveByAsset(ctx, ref)
}

func (s *stakeService) ListPositionsByOwner(ctx context.Context, ownerID int64) ([]domain.Position, error) {
	recs, err := s.receipts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(recs))
	for _, rec := range recs {
		pos, err := s.positions.GetByID(ctx, rec.PositionID)
		if err != nil {
			return nil, err
		}
		out = append(out, *pos)
	}
	return out, nil
}

func (s *stakeService) ListPositionsByContract(ctx context.Context, contract string) ([]domain.Position, error) {
	return s.positions.ListByContract(ctx, contract)
}

func (s *stakeService) GetReceipt(ctx context.Context, serial string) (*domain.Receipt, error) {
	return s.receipts.GetBySerial(ctx, serial)
}
