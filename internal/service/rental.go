package service

import (
	"context"
	"fmt"
	"time"

	"stakelend-backend/internal/custody"
	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/engine"
	"stakelend-backend/internal/logger"
	"stakelend-backend/internal/repository"
)

type rentalService struct {
	registry  custody.AssetCustody
	positions repository.PositionRepository
	receipts  repository.ReceiptRepository
	ledger    repository.LedgerRepository
	feeCfg    repository.FeeConfigRepository
	accounts  repository.AccountRepository
	eng       *engine.Engine
	notify    NotificationService
	email     EmailService
}

func NewRentalService(
	registry custody.AssetCustody,
	positions repository.PositionRepository,
	receipts repository.ReceiptRepository,
	ledger repository.LedgerRepository,
	feeCfg repository.FeeConfigRepository,
	accounts repository.AccountRepository,
	eng *engine.Engine,
	notify NotificationService,
	email EmailService,
) RentalService {
	return &rentalService{
		registry:  registry,
		positions: positions,
		receipts:  receipts,
		ledger:    ledger,
		feeCfg:    feeCfg,
		accounts:  accounts,
		eng:       eng,
		notify:    notify,
		email:     email,
	}
}

func (s *rentalService) Quote(ctx context.Context, positionID int64, expiry time.Time, hasBroker, hasAffiliate bool) (*engine.Split, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos.State != domain.PositionStateActive {
		return nil, fmt.Errorf("%w: position %d is withdrawn", domain.ErrPolicyViolation, positionID)
	}
	if !expiry.Before(pos.Condition.LendLimitDate) {
		return nil, fmt.Errorf("%w: expiry is not before the lend limit date", domain.ErrPolicyViolation)
	}
	days := engine.DurationDays(s.eng.Now(), expiry)
	if days < 1 {
		return nil, fmt.Errorf("%w: rental must cover at least one whole day", domain.ErrPolicyViolation)
	}
	if pos.Condition.MinimumPeriodDays > 0 && days < pos.Condition.MinimumPeriodDays {
		return nil, fmt.Errorf("%w: rental of %d days is under the minimum period of %d days",
			domain.ErrPolicyViolation, days, pos.Condition.MinimumPeriodDays)
	}
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return nil, err
	}
	fee := engine.LendFee(days, pos.Condition.FeePerDayCents)
	split := engine.ComputeSplit(fee, *rates, pos.Condition.AffiliateRewardPermille, hasBroker, hasAffiliate)
	return &split, nil
}

func (s *rentalService) Borrow(ctx context.Context, in BorrowInput) (*domain.RentalSettlement, error) {
	pos, err := s.positions.GetByID(ctx, in.PositionID)
	if err != nil {
		return nil, err
	}
	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return nil, err
	}

	settlement, err := s.eng.QuoteBorrow(pos, *rates, engine.BorrowRequest{
		RenterID:        in.RenterID,
		RequestedExpiry: in.Expiry,
		BrokerID:        in.BrokerID,
		AffiliateID:     in.AffiliateID,
		PaymentCents:    in.PaymentCents,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.SettleRental(ctx, settlement, s.eng.Now()); err != nil {
		return nil, err
	}

	logger.Info("Rental settled",
		"position_id", settlement.PositionID,
		"renter_id", settlement.RenterID,
		"fee_cents", settlement.LendFeeCents,
		"expiry", settlement.NewExpiry)

	s.notifyOwner(ctx, settlement, "Asset rented",
		fmt.Sprintf("Your asset %s was rented until %s for %d cents.",
			settlement.Asset, settlement.NewExpiry.Format(time.RFC3339), settlement.LendFeeCents))
	return settlement, nil
}

func (s *rentalService) Extend(ctx context.Context, in ExtendInput) (*domain.RentalSettlement, error) {
	pos, err := s.positions.GetByID(ctx, in.PositionID)
	if err != nil {
		return nil, err
	}
	expiry, err := s.registry.CurrentUserExpiry(ctx, pos.Asset)
	if err != nil {
		return nil, err
	}
	if expiry == nil || expiry.Before(s.eng.Now()) {
		return nil, fmt.Errorf("%w: no running rental on position %d to extend", domain.ErrStateConflict, in.PositionID)
	}

	rates, err := s.feeCfg.Current(ctx)
	if err != nil {
		return nil, err
	}
	settlement, err := s.eng.QuoteExtension(pos, *rates, engine.ExtendRequest{
		RenterID:       in.RenterID,
		CurrentExpiry:  *expiry,
		AdditionalDays: in.AdditionalDays,
		BrokerID:       in.BrokerID,
		AffiliateID:    in.AffiliateID,
		PaymentCents:   in.PaymentCents,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.SettleRental(ctx, settlement, s.eng.Now()); err != nil {
		return nil, err
	}

	logger.Info("Rental extended",
		"position_id", settlement.PositionID,
		"renter_id", settlement.RenterID,
		"fee_cents", settlement.LendFeeCents,
		"expiry", settlement.NewExpiry)

	s.notifyOwner(ctx, settlement, "Rental extended",
		fmt.Sprintf("The rental of your asset %s was extended until %s for %d cents.",
			settlement.Asset, settlement.NewExpiry.Format(time.RFC3339), settlement.LendFeeCents))
	return settlement, nil
}

func (s *rentalService) GetGrant(ctx context.Context, ref domain.AssetRef) (*domain.Asset, error) {
	return s.registry.Get(ctx, ref)
}

// notifyOwner tells the receipt holder about a settlement. Delivery is best
// effort; the settlement itself already committed.
func (s *rentalService) notifyOwner(ctx context.Context, settlement *domain.RentalSettlement, title, message string) {
	rec, err := s.receipts.GetByPosition(ctx, settlement.PositionID)
	if err != nil {
		logger.Warn("Could not resolve receipt holder for notification", "position_id", settlement.PositionID, "error", err)
		return
	}
	attrs := map[string]string{
		"position_id": fmt.Sprintf("%d", settlement.PositionID),
		"asset":       settlement.Asset.String(),
		"fee_cents":   fmt.Sprintf("%d", settlement.LendFeeCents),
	}
	if err := s.notify.Notify(ctx, rec.OwnerAccountID, title, message, attrs); err != nil {
		logger.Warn("Failed to store notification", "account_id", rec.OwnerAccountID, "error", err)
	}

	owner, err := s.accounts.GetByID(ctx, rec.OwnerAccountID)
	if err != nil {
		logger.Warn("Could not resolve owner account for email", "account_id", rec.OwnerAccountID, "error", err)
		return
	}
	var emailErr error
	if settlement.Extension {
		emailErr = s.email.SendRentalExtended(ctx, owner.Email, owner.Name, settlement.Asset, settlement.NewExpiry)
	} else {
		emailErr = s.email.SendRentalStarted(ctx, owner.Email, owner.Name, settlement.Asset, settlement.NewExpiry)
	}
	if emailErr != nil {
		logger.Warn("Failed to send settlement email", "account_id", owner.ID, "error", emailErr)
	}
}
