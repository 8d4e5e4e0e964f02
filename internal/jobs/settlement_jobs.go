package jobs

import (
	"context"
	"time"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/logger"
)

// SettleAccumulatedBalances pays out broker and affiliate balances that
// reached the configured threshold.
func (jr *JobRunner) SettleAccumulatedBalances() {
	jr.runWithRecovery("SettleAccumulatedBalances", func() {
		ctx := context.Background()
		threshold := jr.config.Settlement.ThresholdCents

		for _, class := range []domain.BalanceClass{domain.BalanceClassBroker, domain.BalanceClassAffiliate} {
			balances, err := jr.store.ListAccumulatorsAbove(ctx, class, threshold)
			if err != nil {
				logger.Error("Failed to list accumulators", "class", class, "error", err)
				continue
			}

			for accountID := range balances {
				var paid int64
				var err error
				switch class {
				case domain.BalanceClassBroker:
					paid, err = jr.services.Ledger.WithdrawBrokerBalance(ctx, accountID)
				case domain.BalanceClassAffiliate:
					paid, err = jr.services.Ledger.WithdrawAffiliateBalance(ctx, accountID)
				}
				if err != nil {
					logger.Error("Automatic payout failed", "class", class, "account_id", accountID, "error", err)
					continue
				}
				if paid == 0 {
					continue
				}

				account, err := jr.services.Auth.GetAccount(ctx, accountID)
				if err != nil {
					logger.Warn("Could not resolve account for payout email", "account_id", accountID, "error", err)
					continue
				}
				if err := jr.services.Email.SendPayoutConfirmation(ctx, account.Email, account.Name, paid); err != nil {
					logger.Warn("Failed to send payout email", "account_id", accountID, "error", err)
				}
			}
		}
	})
}

// TakeBalanceSnapshots records the periodic roll-up of all balance classes.
func (jr *JobRunner) TakeBalanceSnapshots() {
	jr.runWithRecovery("TakeBalanceSnapshots", func() {
		ctx := context.Background()

		snap, err := jr.store.TakeSnapshot(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to take balance snapshot", "error", err)
			return
		}

		logger.Info("Balance snapshot taken",
			"snapshot_id", snap.ID,
			"owners_cents", snap.OwnersCents,
			"protocol_cents", snap.ProtocolCents,
			"brokers_cents", snap.BrokersCents,
			"affiliates_cents", snap.AffiliatesCents)
	})
}
