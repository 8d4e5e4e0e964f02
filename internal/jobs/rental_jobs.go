package jobs

import (
	"context"
	"time"

	"stakelend-backend/internal/logger"
)

// SweepExpiredGrants clears expired usage grants from the custody registry
// and tells the receipt holder their asset is available again.
func (jr *JobRunner) SweepExpiredGrants() {
	jr.runWithRecovery("SweepExpiredGrants", func() {
		ctx := context.Background()
		now := time.Now().UTC()

		expired, err := jr.registry.ListExpiredGrants(ctx, now)
		if err != nil {
			logger.Error("Failed to list expired grants", "error", err)
			return
		}
		if len(expired) == 0 {
			return
		}

		cleared := 0
		for _, asset := range expired {
			if err := jr.registry.ClearGrant(ctx, asset.Ref, now); err != nil {
				logger.Error("Failed to clear grant", "asset", asset.Ref.String(), "error", err)
				continue
			}
			cleared++

			pos, err := jr.store.GetActiveByAsset(ctx, asset.Ref)
			if err != nil {
				// A withdrawn position has no holder to notify.
				logger.Debug("No active position for cleared grant", "asset", asset.Ref.String())
				continue
			}
			rec, err := jr.store.GetByPosition(ctx, pos.ID)
			if err != nil {
				logger.Warn("Could not resolve receipt holder", "position_id", pos.ID, "error", err)
				continue
			}

			if err := jr.services.Notification.Notify(ctx, rec.OwnerAccountID,
				"Asset available",
				"The rental on your asset "+asset.Ref.String()+" has ended.",
				map[string]string{"asset": asset.Ref.String()},
			); err != nil {
				logger.Warn("Failed to store availability notification", "account_id", rec.OwnerAccountID, "error", err)
			}

			owner, err := jr.services.Auth.GetAccount(ctx, rec.OwnerAccountID)
			if err != nil {
				logger.Warn("Could not resolve owner account", "account_id", rec.OwnerAccountID, "error", err)
				continue
			}
			if err := jr.services.Email.SendAssetAvailable(ctx, owner.Email, owner.Name, asset.Ref); err != nil {
				logger.Warn("Failed to send availability email", "account_id", owner.ID, "error", err)
			}
		}

		logger.Info("Cleared expired grants", "count", cleared)
	})
}
